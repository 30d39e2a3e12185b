package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]struct {
		want    string
		wantErr bool
	}{
		"debug":   {want: "DEBUG"},
		"INFO":    {want: "INFO"},
		"":        {want: "INFO"},
		"warning": {want: "WARN"},
		"error":   {want: "ERROR"},
		"loud":    {want: "INFO", wantErr: true},
	}
	for in, tc := range cases {
		lvl, err := ParseLevel(in)
		if tc.wantErr {
			require.Error(t, err, in)
		} else {
			require.NoError(t, err, in)
		}
		require.Equal(t, tc.want, lvl.String(), in)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo, "json")
	logger.Debug("hidden")
	logger.Info("shown", "room", "R1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["msg"])
	require.Equal(t, "R1", line["room"])
}
