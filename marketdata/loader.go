// Package marketdata 读取本地历史收盘价并估计年化漂移与波动率.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/montecarlo/xerrors"
)

// DateLayout CSV 中日期列的格式.
const DateLayout = "2006-01-02"

// Bar 单日收盘价.
type Bar struct {
	Date  time.Time
	Close float64
}

// Series 按日期升序排列的收盘价序列.
type Series []Bar

// Closes 返回收盘价切片.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// LoadCSV 读取 "date,close" 格式的文件，表头可选.
// from/to 非零时只保留 [from, to) 区间内的记录；结果按日期排序.
func LoadCSV(path string, from, to time.Time) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrNotFound, "open market data")
	}
	defer f.Close()
	return ReadCSV(f, from, to)
}

// ReadCSV 同 LoadCSV，从任意 Reader 读取.
func ReadCSV(r io.Reader, from, to time.Time) (Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var series Series
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, xerrors.ErrInvalidInput.WithDetail("line %d: %v", line, err)
		}
		if len(rec) < 2 {
			return nil, xerrors.ErrInvalidInput.WithDetail("line %d: expected date,close", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}

		bar, err := parseBar(rec[0], rec[1])
		if err != nil {
			return nil, xerrors.ErrInvalidInput.WithDetail("line %d: %v", line, err)
		}
		if !from.IsZero() && bar.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !bar.Date.Before(to) {
			continue
		}
		series = append(series, bar)
	}

	slices.SortStableFunc(series, func(a, b Bar) int { return a.Date.Compare(b.Date) })
	return series, nil
}

func parseBar(date, closePrice string) (Bar, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return Bar{}, fmt.Errorf("bad date %q", date)
	}
	px, err := decimal.NewFromString(strings.TrimSpace(closePrice))
	if err != nil {
		return Bar{}, fmt.Errorf("bad close %q", closePrice)
	}
	if !px.IsPositive() {
		return Bar{}, fmt.Errorf("close must be positive, got %s", px)
	}
	return Bar{Date: d, Close: px.InexactFloat64()}, nil
}
