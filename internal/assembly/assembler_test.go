package assembly

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine_Layout(t *testing.T) {
	a := NewAssembler(nil)

	imports := []string{"import os", "import pytest", "from calc import add"}
	blocks := []Block{
		{Lines: []string{"def test_add():", "    assert add(1, 2) == 3"}},
	}
	got := a.Combine(imports, blocks, "calc", "calc")

	want := `"""Tests for calc module."""

import os

import pytest

from calc import add


def test_add():
    assert add(1, 2) == 3
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Combine mismatch (-want +got):\n%s", diff)
	}
}

func TestCombine_PytestAlwaysPresent(t *testing.T) {
	a := NewAssembler(nil)

	got := a.Combine(nil, []Block{
		{Lines: []string{"def test_x():", "    pass"}},
	}, "calc", "calc")

	assert.Contains(t, got, "import pytest")
}

func TestCombine_LocalSectionAlwaysPresent(t *testing.T) {
	a := NewAssembler(nil)

	// No local imports recovered at all: the wildcard fallback must appear.
	got := a.Combine([]string{"import pytest"}, []Block{
		{Lines: []string{"def test_x():", "    pass"}},
	}, "calc", "mypkg.calc")

	assert.Contains(t, got, "from mypkg.calc import *")
}

func TestCombine_NoStandardSection(t *testing.T) {
	a := NewAssembler(nil)

	got := a.Combine([]string{"import pytest"}, []Block{
		{Lines: []string{"def test_x():", "    pass"}},
	}, "calc", "calc")

	// No empty standard section: docstring is immediately followed by the
	// third-party imports.
	assert.True(t, strings.HasPrefix(got, "\"\"\"Tests for calc module.\"\"\"\n\nimport pytest\n"))
}

func TestCombine_BlockSeparation(t *testing.T) {
	a := NewAssembler(nil)

	got := a.Combine(nil, []Block{
		{Lines: []string{"def test_a():", "    assert True"}},
		{Lines: []string{"def test_b():", "    pass"}},
	}, "calc", "calc")

	assert.Contains(t, got, "    assert True\n\n\ndef test_b():")
}

func TestCombine_DuplicateBlocksCollapse(t *testing.T) {
	a := NewAssembler(nil)

	got := a.Combine(nil, []Block{
		{Lines: []string{"def test_a():", "    assert 1 == 1"}},
		{Lines: []string{"def test_a():", "    assert 2 == 2"}},
	}, "calc", "calc")

	assert.Equal(t, 1, strings.Count(got, "def test_a():"))
	assert.Contains(t, got, "assert 1 == 1")
}

func TestCombine_RoundTripStable(t *testing.T) {
	// Re-scanning an assembled file and re-combining must reproduce it
	// byte for byte; this is the invariant append mode depends on.
	a := NewAssembler(nil)

	first := a.Combine(
		[]string{"import os", "from calc import add, sub"},
		[]Block{
			{Lines: []string{"def test_add():", "    assert add(1, 2) == 3"}},
			{Lines: []string{"@pytest.mark.slow", "def test_sub():", "    assert sub(3, 1) == 2"}},
		},
		"calc", "calc",
	)

	rescanned := Scan(first)
	second := a.Combine(rescanned.Imports, rescanned.Blocks, "calc", "calc")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round trip not stable (-first +second):\n%s", diff)
	}
}

func TestAppend(t *testing.T) {
	a := NewAssembler(nil)

	existing := a.Combine(
		[]string{"import pytest", "from calc import add"},
		[]Block{{Lines: []string{"def test_add():", "    assert add(1, 2) == 3"}}},
		"calc", "calc",
	)

	generated := "import json\nfrom calc import sub\n\ndef test_sub():\n    assert sub(3, 1) == 2"

	t.Run("merges imports and blocks", func(t *testing.T) {
		got := a.Append(existing, generated, "calc", "calc")

		assert.Contains(t, got, "import json")
		assert.Contains(t, got, "from calc import add")
		assert.Contains(t, got, "from calc import sub")
		assert.Contains(t, got, "def test_add():")
		assert.Contains(t, got, "def test_sub():")
		assert.Equal(t, 1, strings.Count(got, `"""Tests for calc module."""`))
	})

	t.Run("existing block wins on name collision", func(t *testing.T) {
		conflicting := "def test_add():\n    assert add(9, 9) == 0"
		got := a.Append(existing, conflicting, "calc", "calc")

		assert.Equal(t, 1, strings.Count(got, "def test_add():"))
		assert.Contains(t, got, "assert add(1, 2) == 3")
		assert.NotContains(t, got, "assert add(9, 9) == 0")
	})

	t.Run("appending twice equals appending once", func(t *testing.T) {
		once := a.Append(existing, generated, "calc", "calc")
		twice := a.Append(once, generated, "calc", "calc")

		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("append not idempotent (-once +twice):\n%s", diff)
		}
	})

	t.Run("appending nothing changes nothing", func(t *testing.T) {
		got := a.Append(existing, "", "calc", "calc")

		if diff := cmp.Diff(existing, got); diff != "" {
			t.Errorf("empty append changed the file (-existing +got):\n%s", diff)
		}
	})
}

func TestEnsurePytest(t *testing.T) {
	assert.Equal(t, []string{"import pytest"}, ensurePytest(nil))
	assert.Equal(t, []string{"import pytest", "import numpy"}, ensurePytest([]string{"import numpy"}))
	assert.Equal(t, []string{"import pytest"}, ensurePytest([]string{"import pytest"}))
}

func TestUnionImports(t *testing.T) {
	got := unionImports(
		[]string{"import a", "import b"},
		[]string{"import b", "import c"},
	)
	require.Equal(t, []string{"import a", "import b", "import c"}, got)
}
