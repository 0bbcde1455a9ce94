package util_test

import (
	"encoding/hex"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritas-l2/hextrie/pkg/util"
)

func TestUint160UnmarshalJSON(t *testing.T) {
	str := "0263c1de100292813b5e075e585acc1bae963b2d"
	expected, err := util.Uint160DecodeStringLE(str)
	require.NoError(t, err)

	// UnmarshalJSON decodes hex-strings
	var u1, u2 util.Uint160

	require.NoError(t, u1.UnmarshalJSON([]byte(`"`+str+`"`)))
	assert.True(t, expected.Equals(u1))

	s, err := expected.MarshalJSON()
	require.NoError(t, err)

	// UnmarshalJSON decodes hex-strings prefixed by 0x
	require.NoError(t, u2.UnmarshalJSON(s))
	assert.True(t, expected.Equals(u2))

	// UnmarshalJSON does not accept numbers
	assert.Error(t, u2.UnmarshalJSON([]byte(`123`)))
}

func TestUInt160DecodeString(t *testing.T) {
	hexStr := "2d3b96ae1bcc5a585e075e3b81920210dec16302"
	val, err := util.Uint160DecodeStringLE(hexStr)
	require.NoError(t, err)
	assert.Equal(t, hexStr, val.String())

	_, err = util.Uint160DecodeStringLE(hexStr[1:])
	assert.Error(t, err)

	hexStr = "zz3b96ae1bcc5a585e075e3b81920210dec16302"
	_, err = util.Uint160DecodeStringLE(hexStr)
	assert.Error(t, err)
}

func TestUint160DecodeBytes(t *testing.T) {
	hexStr := "2d3b96ae1bcc5a585e075e3b81920210dec16302"
	b, err := hex.DecodeString(hexStr)
	require.NoError(t, err)

	val, err := util.Uint160DecodeBytesLE(b)
	require.NoError(t, err)
	assert.Equal(t, hexStr, val.String())

	valBE, err := util.Uint160DecodeBytesBE(b)
	require.NoError(t, err)
	assert.Equal(t, hexStr, valBE.StringBE())
	assert.Equal(t, val, valBE.Reverse())

	_, err = util.Uint160DecodeBytesLE(b[1:])
	assert.Error(t, err)

	_, err = util.Uint160DecodeBytesBE(b[1:])
	assert.Error(t, err)
}

func TestUInt160Equals(t *testing.T) {
	a := "2d3b96ae1bcc5a585e075e3b81920210dec16302"
	b := "4d3b96ae1bcc5a585e075e3b81920210dec16302"

	ua, err := util.Uint160DecodeStringLE(a)
	require.NoError(t, err)

	ub, err := util.Uint160DecodeStringLE(b)
	require.NoError(t, err)
	assert.False(t, ua.Equals(ub), "%s and %s cannot be equal", ua, ub)
	assert.True(t, ua.Equals(ua), "%s and %s must be equal", ua, ua)
}

func TestUInt160Less(t *testing.T) {
	a := "2d3b96ae1bcc5a585e075e3b81920210dec16302"
	b := "2d3b96ae1bcc5a585e075e3b81920210dec16303"

	ua, err := util.Uint160DecodeStringLE(a)
	require.NoError(t, err)
	ua2, err := util.Uint160DecodeStringLE(a)
	require.NoError(t, err)
	ub, err := util.Uint160DecodeStringLE(b)
	require.NoError(t, err)

	assert.True(t, ua.Less(ub))
	assert.False(t, ua.Less(ua2))
	assert.False(t, ub.Less(ua))
}

func TestUInt160Sort(t *testing.T) {
	strs := []string{
		"f037308fa0ab18155bccfc08485468c112409ea5",
		"e287c5b29a1b66092be6803c59c765308ac20287",
		"044dc4d26f9b7c6fd81ed2c5bf0b9d30e29e0ae9",
	}
	uts := make([]util.Uint160, len(strs))
	for i := range strs {
		var err error
		uts[i], err = util.Uint160DecodeStringLE(strs[i])
		require.NoError(t, err)
	}

	sort.Slice(uts, func(i, j int) bool { return uts[i].Less(uts[j]) })
	for i := 1; i < len(uts); i++ {
		require.True(t, uts[i-1].Less(uts[i]))
	}
}

func TestUint160_Reverse(t *testing.T) {
	hexStr := "b28427088a3729b2536d10122960394e8be6721f"
	val, err := util.Uint160DecodeStringLE(hexStr)

	require.NoError(t, err)
	assert.Equal(t, hexStr, val.Reverse().StringBE())
	assert.Equal(t, val, val.Reverse().Reverse())
}