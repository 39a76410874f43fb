package strtab_test

import (
	"testing"

	"github.com/AdguardTeam/NetMapper/internal/strtab"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	tbl := strtab.New(2)

	a, err := tbl.Add("a")
	require.NoError(t, err)

	b, err := tbl.Add("b")
	require.NoError(t, err)

	again, err := tbl.Add("a")
	require.NoError(t, err)

	assert.Equal(t, strtab.Handle(1), a)
	assert.Equal(t, strtab.Handle(2), b)
	assert.Equal(t, a, again)
	assert.Equal(t, 2, tbl.Len())

	tbl.Freeze()

	testCases := []struct {
		name   string
		want   string
		h      strtab.Handle
		wantOK bool
	}{{
		name:   "first",
		want:   "a",
		h:      a,
		wantOK: true,
	}, {
		name:   "second",
		want:   "b",
		h:      b,
		wantOK: true,
	}, {
		name:   "none",
		want:   "",
		h:      strtab.None,
		wantOK: false,
	}, {
		name:   "undefined",
		want:   "",
		h:      strtab.Undefined,
		wantOK: false,
	}, {
		name:   "out_of_range",
		want:   "",
		h:      3,
		wantOK: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, ok := tbl.Get(tc.h)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, s)
		})
	}
}

func TestTable_Add_empty(t *testing.T) {
	tbl := strtab.New(0)

	h, err := tbl.Add("")
	testutil.AssertErrorMsg(t, "empty string", err)

	assert.Equal(t, strtab.None, h)
	assert.Zero(t, tbl.Len())
}

func TestHandle_IsLabel(t *testing.T) {
	assert.False(t, strtab.None.IsLabel())
	assert.False(t, strtab.Undefined.IsLabel())
	assert.True(t, strtab.Handle(1).IsLabel())
	assert.True(t, strtab.MaxHandle.IsLabel())
}
