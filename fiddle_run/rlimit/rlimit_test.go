package rlimit

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRLimit(t *testing.T) {
	tests := []struct {
		name   string
		l      Limits
		expect []int
	}{
		{name: "Empty", l: Limits{}, expect: nil},
		{name: "CPU only", l: Limits{CPUSeconds: 5}, expect: []int{syscall.RLIMIT_CPU}},
		{name: "AS only", l: Limits{AddressSpaceBytes: 1 << 20}, expect: []int{syscall.RLIMIT_AS}},
		{
			name:   "Both",
			l:      Limits{CPUSeconds: 20, AddressSpaceBytes: 1 << 30},
			expect: []int{syscall.RLIMIT_CPU, syscall.RLIMIT_AS},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs := tt.l.PrepareRLimit()
			assert.Equal(t, len(tt.expect), len(pairs))
			for i, p := range pairs {
				assert.Equal(t, tt.expect[i], p.Res)
			}
		})
	}
}

func TestPrepareRLimit_Values(t *testing.T) {
	l := Limits{CPUSeconds: 20, AddressSpaceBytes: 1 << 30}
	pairs := l.PrepareRLimit()
	req := require.New(t)
	req.Len(pairs, 2)
	req.Equal(uint64(20), pairs[0].Rlim.Cur)
	req.Equal(uint64(20), pairs[0].Rlim.Max)
	req.Equal(uint64(1<<30), pairs[1].Rlim.Cur)
}

func TestPairString(t *testing.T) {
	p := Pair{Res: syscall.RLIMIT_CPU, Rlim: syscall.Rlimit{Cur: 20, Max: 20}}
	assert.Equal(t, "CPU[20:20]", p.String())
}
