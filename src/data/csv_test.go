package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optionsflow/optionsflow/src/eventmodels"
)

func TestSnapshotCSVRoundTrip(t *testing.T) {
	expiration := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "chain.csv")

	contracts := []eventmodels.OptionContractSnapshot{
		{Strike: 21100, OptionType: eventmodels.OptionTypeCall, Volume: 2500, OpenInterest: 150, LastPrice: 125, Expiration: expiration},
		{Strike: 20800, OptionType: eventmodels.OptionTypePut, Volume: 900, OpenInterest: 4000, LastPrice: 80, Expiration: expiration},
	}

	require.NoError(t, ExportSnapshotCSV(path, contracts))

	loaded, err := LoadSnapshotCSV(path)
	require.NoError(t, err)
	assert.Equal(t, contracts, loaded)
}

func TestLoadSnapshotCSV_SkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.csv")

	csv := "strike,option_type,volume,open_interest,last_price,expiration\n" +
		"21100,call,2500,150,125,2026-03-13T20:00:00Z\n" +
		"-5,call,100,100,10,2026-03-13T20:00:00Z\n" +
		"20800,put,900,4000,80,not-a-date\n"

	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	loaded, err := LoadSnapshotCSV(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 21100.0, loaded[0].Strike)
}

func TestReplaySource(t *testing.T) {
	expiration := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "chain.csv")

	require.NoError(t, ExportSnapshotCSV(path, []eventmodels.OptionContractSnapshot{
		{Strike: 21100, OptionType: eventmodels.OptionTypeCall, Volume: 2500, OpenInterest: 150, LastPrice: 125, Expiration: expiration},
	}))

	source, err := NewReplaySource(path, "NDX", 21054.50)
	require.NoError(t, err)

	snapshot, price, err := source.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21054.50, price)
	assert.Equal(t, "NDX", snapshot.UnderlyingSymbol)
	assert.Len(t, snapshot.Contracts, 1)
}
