package shareddb_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yuku/testonce/shareddb"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		datname string
		wantPID int
		wantOK  bool
	}{
		{"app_test_1234_0a1b2c3d", 1234, true},
		{"app_test_1_ffffffff", 1, true},
		{"app_test_1234", 0, false},
		{"app_test__0a1b2c3d", 0, false},
		{"app_test_0_0a1b2c3d", 0, false},
		{"app_test_12a_0a1b2c3d", 0, false},
		{"app_test_-5_0a1b2c3d", 0, false},
		{"app_test_1234_0a1b2c", 0, false},
		{"app_test_1234_0a1b2c3g", 0, false},
		{"app_test_other_12_0a1b2c3d", 0, false},
		{"other_1234_0a1b2c3d", 0, false},
		{"app_test", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.datname, func(t *testing.T) {
			pid, ok := shareddb.ParseName("app_test", tt.datname)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPID, pid)
		})
	}
}

func TestNameFor(t *testing.T) {
	name := shareddb.NameFor("app_test", os.Getpid(), "deadbeef")
	pid, ok := shareddb.ParseName("app_test", name)
	assert.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
}

func TestParseOwner(t *testing.T) {
	owner := shareddb.Owner{Host: "ci-runner-7", PID: 4242}
	assert.Equal(t, "testonce host=ci-runner-7 pid=4242", owner.String())

	got, ok := shareddb.ParseOwner(owner.String())
	assert.True(t, ok)
	assert.Equal(t, owner, got)

	for _, comment := range []string{
		"",
		"created by hand",
		"testonce host= pid=1",
		"testonce host=box",
		"testonce host=box pid=0",
		"testonce host=box pid=abc",
	} {
		_, ok := shareddb.ParseOwner(comment)
		assert.False(t, ok, "comment %q", comment)
	}
}
