package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerBits(t *testing.T) {
	testCases := []struct {
		input    string
		expected int
		ok       bool
	}{
		{"int", 32, true},
		{"unsigned int", 32, true},
		{"unsigned", 32, true},
		{"short", 16, true},
		{"unsigned short", 16, true},
		{"short int", 16, true},
		{"long", 64, true},
		{"long long", 64, true},
		{"unsigned long long", 64, true},
		{"int8_t", 8, true},
		{"std::uint16_t", 16, true},
		{"size_t", 64, true},
		{"char", 0, false},
		{"unsigned char", 0, false},
		{"bool", 0, false},
		{"double", 0, false},
		{"std::string", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			bits, ok := IntegerBits(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, bits)
		})
	}
}

func TestParseIntLiteral(t *testing.T) {
	testCases := []struct {
		input    string
		expected int64
		ok       bool
	}{
		{"10", 10, true},
		{"0", 0, true},
		{"0x1F", 31, true},
		{"010", 8, true},
		{"0b101", 5, true},
		{"100UL", 100, true},
		{"1'000", 1000, true},
		{"1.5", 0, false},
		{"abc", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			v, ok := ParseIntLiteral(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func TestSplitTemplate(t *testing.T) {
	base, args := SplitTemplate("std::map<std::string,std::vector<int>>")
	assert.Equal(t, "std::map", base)
	assert.Equal(t, []string{"std::string", "std::vector<int>"}, args)

	elem, ok := ElementType("std::vector<Point>")
	require.True(t, ok)
	assert.Equal(t, "Point", elem)

	_, ok = ElementType("int")
	assert.False(t, ok)
}

func TestTypeIndexLookup(t *testing.T) {
	src := `#define SIZE 8
const int LIMIT = 4;
struct Big { int a; int b; int c; };
typedef unsigned short u16;
int g;

void f(char *name, int n) {
    int buf[SIZE];
    int small[LIMIT];
    int list[] = {1, 2, 3};
    u16 port;
    Big b;
}

void h() {
    double g;
}
`
	ctx := mustParse(t, LanguageCPP, src)

	ids, err := ctx.QueryNodes("(function_definition body: (compound_statement) @body)")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	lookup := func(name string, body int) *VarInfo {
		return ctx.Types.Lookup(name, ids[body].NamedChild(int(ids[body].NamedChildCount())-1))
	}

	buf := lookup("buf", 0)
	require.NotNil(t, buf)
	assert.True(t, buf.Array)
	assert.EqualValues(t, 8, buf.ArraySize)
	assert.EqualValues(t, 4, lookup("small", 0).ArraySize)
	assert.EqualValues(t, 3, lookup("list", 0).ArraySize)

	name := lookup("name", 0)
	require.NotNil(t, name)
	assert.True(t, name.Param)
	assert.Equal(t, 1, name.Pointers)

	port := lookup("port", 0)
	require.NotNil(t, port)
	bits, ok := ctx.Types.IntegerBits(port.Type)
	require.True(t, ok)
	assert.Equal(t, 16, bits)

	assert.True(t, ctx.Types.IsExpensiveToCopy(lookup("b", 0).Type))
	assert.Equal(t, "int", lookup("g", 0).Type)
	assert.Equal(t, "double", lookup("g", 1).Type)
	assert.Nil(t, lookup("buf", 1))

	v, ok := ctx.Types.Constant("SIZE")
	require.True(t, ok)
	assert.EqualValues(t, 8, v)
}
