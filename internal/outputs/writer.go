// Package outputs implements the per-run text file sinks described in
// §6 of the spec. Grounded on original_source/pi_code.c's
// create_txt_files/fprintf formatting, which this reproduces
// byte-for-byte (tab layout, %.4f precision, "no_data" literal) so any
// downstream parser built against the original output keeps working.
package outputs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/azanium/tickstream/internal/trade"
)

// Writer owns every output file for one run. Files are truncated and
// given a header at Open; Close flushes and closes all of them exactly
// once.
type Writer struct {
	symbols []string

	tradeFiles     []*bufio.Writer
	candleFiles    []*bufio.Writer
	smaVolFiles    []*bufio.Writer
	timeDiffFile   *bufio.Writer
	finProFile     *bufio.Writer
	proConFile     *bufio.Writer

	closers []*os.File
}

// Open creates (overwriting) every output file under dir for the given
// symbol list, in column order, and writes their headers. An error
// here is fatal at startup per §7 of the spec.
func Open(dir string, symbols []string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("outputs: create dir: %w", err)
	}

	w := &Writer{symbols: symbols}

	for _, sym := range symbols {
		tf, err := w.create(dir, sym+".txt")
		if err != nil {
			return nil, err
		}
		fmt.Fprint(tf, "Price\t\tVolume\t\tTime\n")
		w.tradeFiles = append(w.tradeFiles, tf)

		cf, err := w.create(dir, sym+"_candlestick.txt")
		if err != nil {
			return nil, err
		}
		fmt.Fprint(cf, "Open\t\tClose\t\tHigh\t\tLow\t\tVolume\n")
		w.candleFiles = append(w.candleFiles, cf)

		sf, err := w.create(dir, sym+"_sma_volume.txt")
		if err != nil {
			return nil, err
		}
		fmt.Fprint(sf, "SMA\t\tVolume\n")
		w.smaVolFiles = append(w.smaVolFiles, sf)
	}

	header := strings.Join(symbols, "\t") + "\t\n"

	var err error
	if w.timeDiffFile, err = w.create(dir, "candlestick_time_differences.txt"); err != nil {
		return nil, err
	}
	fmt.Fprint(w.timeDiffFile, header)

	if w.finProFile, err = w.create(dir, "finnhub_producer_delay.txt"); err != nil {
		return nil, err
	}
	fmt.Fprint(w.finProFile, header)

	if w.proConFile, err = w.create(dir, "producer_consumer_delay.txt"); err != nil {
		return nil, err
	}
	fmt.Fprint(w.proConFile, header)

	return w, nil
}

func (w *Writer) create(dir, name string) (*bufio.Writer, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("outputs: open %s: %w", name, err)
	}
	w.closers = append(w.closers, f)
	return bufio.NewWriter(f), nil
}

// WriteTick appends one raw trade line to symbol i's <SYMBOL>.txt. The
// symbol and ingress time are accepted to satisfy ingest.ConsumerSink
// uniformly with sinks that also mirror ticks elsewhere; the text
// format itself only ever carried price/volume/event time.
func (w *Writer) WriteTick(i int, _ string, price, volume float64, eventTimeMs, _ int64) error {
	_, err := fmt.Fprintf(w.tradeFiles[i], "%.4f\t%.4f\t\t%d\n", price, volume, eventTimeMs)
	return err
}

// WriteDelayRow appends one row to both latency files: the column for
// symbol i carries the measured delays, every other column is "0", so
// columns stay aligned with the shared symbol header.
func (w *Writer) WriteDelayRow(i int, finToProDelayMs, proToConDelayUs int64) error {
	if err := w.writeDelayRow(w.finProFile, i, finToProDelayMs); err != nil {
		return err
	}
	return w.writeDelayRow(w.proConFile, i, proToConDelayUs)
}

func (w *Writer) writeDelayRow(f *bufio.Writer, i int, value int64) error {
	for j := range w.symbols {
		var err error
		if j == i {
			_, err = fmt.Fprintf(f, "%d\t", value)
		} else {
			_, err = fmt.Fprint(f, "0\t")
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(f, "\n")
	return err
}

// WriteCandlestick appends one finalized candlestick line for symbol i.
func (w *Writer) WriteCandlestick(i int, c trade.Candlestick) error {
	_, err := fmt.Fprintf(w.candleFiles[i], "%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n", c.Open, c.Close, c.High, c.Low, c.Volume)
	return err
}

// WriteCandlestickNoData marks symbol i's minute as starved.
func (w *Writer) WriteCandlestickNoData(i int) error {
	_, err := fmt.Fprint(w.candleFiles[i], "no_data\n")
	return err
}

// WriteSMAVolume appends one SMA/volume line for symbol i.
func (w *Writer) WriteSMAVolume(i int, sma15, vol15 float64) error {
	_, err := fmt.Fprintf(w.smaVolFiles[i], "%.4f\t%.4f\n", sma15, vol15)
	return err
}

// WriteSMAVolumeNoData marks symbol i's minute as starved.
func (w *Writer) WriteSMAVolumeNoData(i int) error {
	_, err := fmt.Fprint(w.smaVolFiles[i], "no_data\n")
	return err
}

// WriteGapRow appends one row to candlestick_time_differences.txt: one
// cell per symbol, in column order, "0" for a starved or first-ever
// emission.
func (w *Writer) WriteGapRow(gapsUs []int64, hasGap []bool) error {
	for i := range w.symbols {
		var err error
		if hasGap[i] {
			_, err = fmt.Fprintf(w.timeDiffFile, "%d\t", gapsUs[i])
		} else {
			_, err = fmt.Fprint(w.timeDiffFile, "0\t")
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w.timeDiffFile, "\n")
	return err
}

// Flush flushes every buffered writer without closing the underlying
// files.
func (w *Writer) Flush() error {
	all := append([]*bufio.Writer{}, w.tradeFiles...)
	all = append(all, w.candleFiles...)
	all = append(all, w.smaVolFiles...)
	all = append(all, w.timeDiffFile, w.finProFile, w.proConFile)

	for _, bw := range all {
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes every output file. Safe to call once; a
// second call will error on the already-closed file handles, which
// callers should ignore during shutdown.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	for _, f := range w.closers {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
