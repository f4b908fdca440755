package main

import (
	"testing"

	"physframe/kernel/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	specs := []struct {
		input  string
		exp    mem.Size
		expErr bool
	}{
		{"4096", 4096, false},
		{"0x100000", mem.Mb, false},
		{"4K", 4 * mem.Kb, false},
		{"4kb", 4 * mem.Kb, false},
		{" 2M ", 2 * mem.Mb, false},
		{"1G", mem.Gb, false},
		{"1GB", mem.Gb, false},
		{"0xab", 0xab, false},
		{"", 0, true},
		{"K", 0, true},
		{"12X", 0, true},
		{"-1M", 0, true},
		{"17179869184G", 0, true},
	}

	for specIndex, spec := range specs {
		got, err := parseSize(spec.input)
		if spec.expErr {
			assert.Error(t, err, "[spec %d]", specIndex)
			continue
		}
		require.NoError(t, err, "[spec %d]", specIndex)
		assert.Equal(t, spec.exp, got, "[spec %d]", specIndex)
	}
}

func TestSizeValue(t *testing.T) {
	var v sizeValue
	require.Equal(t, "size", v.Type())
	require.Equal(t, "0", v.String())

	specs := []struct {
		input, exp string
	}{
		{"4096", "4K"},
		{"3M", "3M"},
		{"2048M", "2G"},
		{"1000", "1000"},
		{"0x20000", "128K"},
	}

	for _, spec := range specs {
		require.NoError(t, v.Set(spec.input))
		assert.Equal(t, spec.exp, v.String(), spec.input)
	}

	require.Error(t, v.Set("bogus"))
	assert.Equal(t, "128K", v.String(), "failed Set must keep the old value")
}

func TestHumanSize(t *testing.T) {
	p := newPrinter()

	specs := []struct {
		size mem.Size
		exp  string
	}{
		{512, "512 B"},
		{4 * mem.Kb, "4.0 KiB"},
		{1536 * mem.Kb, "1.5 MiB"},
		{64 * mem.Gb, "64.0 GiB"},
	}

	for _, spec := range specs {
		assert.Equal(t, spec.exp, humanSize(p, spec.size))
	}
}
