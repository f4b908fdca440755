//go:build unix && !linux

package ram

const mmapExtraFlags = 0
