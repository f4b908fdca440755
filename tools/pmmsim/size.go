package main

import (
	"fmt"
	"strconv"
	"strings"

	"physframe/kernel/mem"

	"github.com/spf13/pflag"
)

// sizeValue is a pflag.Value that accepts byte counts with an optional K, M
// or G suffix (powers of 1024).
type sizeValue mem.Size

var _ pflag.Value = (*sizeValue)(nil)

func (s *sizeValue) String() string {
	v := mem.Size(*s)
	switch {
	case v != 0 && v%mem.Gb == 0:
		return strconv.FormatUint(uint64(v/mem.Gb), 10) + "G"
	case v != 0 && v%mem.Mb == 0:
		return strconv.FormatUint(uint64(v/mem.Mb), 10) + "M"
	case v != 0 && v%mem.Kb == 0:
		return strconv.FormatUint(uint64(v/mem.Kb), 10) + "K"
	default:
		return strconv.FormatUint(uint64(v), 10)
	}
}

func (s *sizeValue) Set(value string) error {
	v, err := parseSize(value)
	if err != nil {
		return err
	}
	*s = sizeValue(v)
	return nil
}

func (s *sizeValue) Type() string { return "size" }

func parseSize(value string) (mem.Size, error) {
	unit := mem.Byte
	digits := strings.ToUpper(strings.TrimSpace(value))
	if n := len(digits); n >= 2 && digits[n-1] == 'B' && strings.IndexByte("KMG", digits[n-2]) != -1 {
		digits = digits[:n-1]
	}

	switch {
	case strings.HasSuffix(digits, "K"):
		unit = mem.Kb
	case strings.HasSuffix(digits, "M"):
		unit = mem.Mb
	case strings.HasSuffix(digits, "G"):
		unit = mem.Gb
	}
	if unit != mem.Byte {
		digits = digits[:len(digits)-1]
	}

	n, err := strconv.ParseUint(digits, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", value)
	}

	size := mem.Size(n) * unit
	if n != 0 && size/unit != mem.Size(n) {
		return 0, fmt.Errorf("size %q overflows", value)
	}
	return size, nil
}
