package outputs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azanium/tickstream/internal/outputs"
	"github.com/azanium/tickstream/internal/trade"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestWriterSingleTradeMinuteScenario(t *testing.T) {
	dir := t.TempDir()
	w, err := outputs.Open(dir, []string{"AAPL"})
	require.NoError(t, err)

	require.NoError(t, w.WriteTick(0, "AAPL", 190.5, 3.0, 1700000000000, 1700000000500000))
	require.NoError(t, w.WriteCandlestick(0, trade.Candlestick{Open: 190.5, Close: 190.5, High: 190.5, Low: 190.5, Volume: 3.0}))
	require.NoError(t, w.WriteSMAVolume(0, 12.7, 3.0))
	require.NoError(t, w.Close())

	candle := readFile(t, filepath.Join(dir, "AAPL_candlestick.txt"))
	require.Equal(t, "Open\t\tClose\t\tHigh\t\tLow\t\tVolume\n190.5000\t190.5000\t190.5000\t190.5000\t3.0000\n", candle)

	smaVol := readFile(t, filepath.Join(dir, "AAPL_sma_volume.txt"))
	require.Equal(t, "SMA\t\tVolume\n12.7000\t3.0000\n", smaVol)

	tick := readFile(t, filepath.Join(dir, "AAPL.txt"))
	require.Equal(t, "Price\t\tVolume\t\tTime\n190.5000\t3.0000\t\t1700000000000\n", tick)
}

func TestWriterNoDataMinuteScenario(t *testing.T) {
	dir := t.TempDir()
	w, err := outputs.Open(dir, []string{"AAPL"})
	require.NoError(t, err)

	require.NoError(t, w.WriteCandlestickNoData(0))
	require.NoError(t, w.WriteSMAVolumeNoData(0))
	require.NoError(t, w.Close())

	candle := readFile(t, filepath.Join(dir, "AAPL_candlestick.txt"))
	require.Equal(t, "Open\t\tClose\t\tHigh\t\tLow\t\tVolume\nno_data\n", candle)

	smaVol := readFile(t, filepath.Join(dir, "AAPL_sma_volume.txt"))
	require.Equal(t, "SMA\t\tVolume\nno_data\n", smaVol)
}

func TestWriterDelayRowAlignsColumnsBySymbol(t *testing.T) {
	dir := t.TempDir()
	w, err := outputs.Open(dir, []string{"AAPL", "MSFT"})
	require.NoError(t, err)

	require.NoError(t, w.WriteDelayRow(1, 12, 345))
	require.NoError(t, w.Close())

	finPro := readFile(t, filepath.Join(dir, "finnhub_producer_delay.txt"))
	require.Equal(t, "AAPL\tMSFT\t\n0\t12\t\n", finPro)

	proCon := readFile(t, filepath.Join(dir, "producer_consumer_delay.txt"))
	require.Equal(t, "AAPL\tMSFT\t\n0\t345\t\n", proCon)
}

func TestWriterGapRowZerosUngappedColumns(t *testing.T) {
	dir := t.TempDir()
	w, err := outputs.Open(dir, []string{"AAPL", "MSFT"})
	require.NoError(t, err)

	require.NoError(t, w.WriteGapRow([]int64{0, 60000000}, []bool{false, true}))
	require.NoError(t, w.Close())

	diffs := readFile(t, filepath.Join(dir, "candlestick_time_differences.txt"))
	require.Equal(t, "AAPL\tMSFT\t\n0\t60000000\t\n", diffs)
}
