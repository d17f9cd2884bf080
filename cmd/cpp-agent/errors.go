package main

import (
	"errors"
	"fmt"
)

// 进程退出码
const (
	exitOK       = 0
	exitFailure  = 1
	exitCritical = 2
)

// exitError 携带退出码的命令错误
type exitError struct {
	code int
	err  error
}

func newExitError(code int, err error) *exitError {
	return &exitError{code: code, err: err}
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitCode 把命令错误映射到退出码，普通错误为 1
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}
