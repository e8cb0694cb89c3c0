package sensorcli

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameReaderMultilineRecord(t *testing.T) {
	input := "{\n  \"accel\": {\n    \"values\": [0.1, 0.2, 9.8],\n    \"timestamp\": 1000000000\n  }\n}\n" +
		"{\"gyro\": {\"values\": [0.01, 0, -0.02], \"timestamp\": 2000000000}}\n"

	fr := NewFrameReader(strings.NewReader(input))

	raw1, err := fr.Next()
	require.NoError(t, err)
	name1, values1, ts1, err := ParseRecord(raw1)
	require.NoError(t, err)
	require.Equal(t, "accel", name1)
	require.Equal(t, []float64{0.1, 0.2, 9.8}, values1)
	require.Equal(t, 1.0, ts1)

	raw2, err := fr.Next()
	require.NoError(t, err)
	name2, values2, ts2, err := ParseRecord(raw2)
	require.NoError(t, err)
	require.Equal(t, "gyro", name2)
	require.Equal(t, []float64{0.01, 0, -0.02}, values2)
	require.Equal(t, 2.0, ts2)

	_, err = fr.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestParseRecordRejectsMultiKey(t *testing.T) {
	_, _, _, err := ParseRecord([]byte(`{"accel": {"values": [1,2,3]}, "gyro": {"values": [1,2,3]}}`))
	require.Error(t, err)
}
