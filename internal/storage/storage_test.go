package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	t.Parallel()

	got, err := ObjectPath("www/data/", "france-data.js")
	require.NoError(t, err)
	assert.Equal(t, "www/data/france-data.js", got)

	got, err = ObjectPath("", "france.html")
	require.NoError(t, err)
	assert.Equal(t, "france.html", got)

	got, err = ObjectPath("www/./svg", "a.svg")
	require.NoError(t, err)
	assert.Equal(t, "www/svg/a.svg", got)
}

func TestObjectPathRejects(t *testing.T) {
	t.Parallel()

	cases := []struct{ dir, name string }{
		{"www", ""},
		{"www", "../x"},
		{"www", "a/b"},
		{"www", ".."},
		{"../etc", "passwd"},
		{"www/../../etc", "passwd"},
		{"/etc", "passwd"},
	}
	for _, tc := range cases {
		_, err := ObjectPath(tc.dir, tc.name)
		assert.Error(t, err, "%s + %s", tc.dir, tc.name)
	}
}
