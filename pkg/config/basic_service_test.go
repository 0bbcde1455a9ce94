package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicService_GetAddresses(t *testing.T) {
	s := BasicService{
		Enabled:   true,
		Addresses: []string{"localhost:10332", "127.0.0.1:0", ":0"},
	}
	addrs := s.GetAddresses()
	require.Equal(t, s.Addresses, addrs)

	addrs[0] = "mutated"
	require.Equal(t, "localhost:10332", s.Addresses[0])

	require.Empty(t, BasicService{}.GetAddresses())
}
