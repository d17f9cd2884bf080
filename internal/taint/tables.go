package taint

import (
	"strings"
)

// 分类表全部小写，查询时名称先转小写

var userInputFunctions = set(
	"gets", "fgets", "getline", "scanf", "fscanf", "sscanf",
	"cin", "getchar", "fgetc", "read", "recv", "recvfrom",
	"getopt", "getopt_long",
)

var userInputKeywords = []string{"input", "read"}

var networkFunctions = set(
	"recv", "recvfrom", "recvmsg", "read", "readv",
	"ssl_read", "ssl_recv", "accept", "accept4",
)

var fileFunctions = set(
	"fread", "fgets", "fgetc", "fscanf", "read",
	"readfile", "file_get_contents",
)

var environmentFunctions = set("getenv", "secure_getenv")

var commandSinks = set(
	"system", "popen", "exec", "execl", "execlp", "execle",
	"execv", "execvp", "execvpe", "shellexecute", "winexec",
)

var sqlSinks = set(
	"mysql_query", "mysql_real_query", "pqexec", "pqexecparams",
	"sqlite3_exec", "sqlite3_prepare", "sqlite3_prepare_v2", "exec", "execute",
	"query", "executequery", "executesql",
)

var sqlKeywords = []string{"query", "exec", "sql"}

var pathSinks = set(
	"fopen", "open", "openat", "creat", "freopen",
	"remove", "unlink", "rmdir", "mkdir", "chmod",
)

// formatSinks 格式化函数及其格式串参数下标
var formatSinks = map[string]int{
	"printf":    0,
	"vprintf":   0,
	"fprintf":   1,
	"vfprintf":  1,
	"dprintf":   1,
	"sprintf":   1,
	"vsprintf":  1,
	"syslog":    1,
	"snprintf":  2,
	"vsnprintf": 2,
}

var sanitizerFunctions = set(
	"htmlspecialchars", "mysql_real_escape_string",
	"pg_escape_string", "escapeshellarg",
)

var sanitizerKeywords = []string{"escape", "sanitize", "validate", "filter", "quote"}

// outParam 通过实参写入外部数据的函数：从 first 开始的实参被污染，
// variadic 为 true 时 first 之后的全部实参都被污染
type outParam struct {
	first    int
	variadic bool
}

var outParamSources = map[string]outParam{
	"gets":     {first: 0},
	"fgets":    {first: 0},
	"fread":    {first: 0},
	"read":     {first: 1},
	"recv":     {first: 1},
	"recvfrom": {first: 1},
	"recvmsg":  {first: 1},
	"ssl_read": {first: 1},
	"scanf":    {first: 1, variadic: true},
	"sscanf":   {first: 2, variadic: true},
	"fscanf":   {first: 2, variadic: true},
	"getline":  {first: 1},
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// containsWord 判断 name 中是否含有以非字母数字字符或首尾为边界的 word
// read_input 含有 read 和 input，thread 不含 read
func containsWord(name, word string) bool {
	name = strings.ToLower(name)
	for offset := 0; ; {
		i := strings.Index(name[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if (start == 0 || !isAlnum(name[start-1])) && (end == len(name) || !isAlnum(name[end])) {
			return true
		}
		offset = start + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func matches(name string, exact map[string]bool, keywords []string) bool {
	if name == "" {
		return false
	}
	if exact[strings.ToLower(name)] {
		return true
	}
	for _, kw := range keywords {
		if containsWord(name, kw) {
			return true
		}
	}
	return false
}

// ClassifySource 判断函数是否为污点源并返回来源类型
func ClassifySource(name string) (SourceKind, bool) {
	switch {
	case matches(name, userInputFunctions, userInputKeywords):
		return UserInput, true
	case matches(name, networkFunctions, nil):
		return NetworkData, true
	case matches(name, fileFunctions, nil):
		return FileData, true
	case matches(name, environmentFunctions, nil):
		return Environment, true
	}
	return Unknown, false
}

// ClassifySink 判断函数是否为汇点；按命令、SQL、路径、格式串的顺序匹配
func ClassifySink(name string) (Risk, bool) {
	lower := strings.ToLower(name)
	switch {
	case commandSinks[lower]:
		return RiskCommandInjection, true
	case matches(name, sqlSinks, sqlKeywords):
		return RiskSQLInjection, true
	case pathSinks[lower]:
		return RiskPathTraversal, true
	}
	if _, ok := formatSinks[lower]; ok {
		return RiskFormatString, true
	}
	return "", false
}

// IsSanitizer 判断函数是否为净化函数
func IsSanitizer(name string) bool {
	return matches(name, sanitizerFunctions, sanitizerKeywords)
}
