package tasks

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// chunkRows is the row batch size the CSV writer flushes at.
const chunkRows = 100000

// column pairs a header name with its resolved dtype and values, aligned
// 1:1 against the shared timestamp axis.
type column struct {
	name   string
	dtype  DType
	values []float64
}

// writeCSV streams a semicolon-separated file: a header row ("time" plus
// each column name) followed by the data, chunkRows rows at a time so a
// multi-gigabyte recording never needs its formatted text fully buffered.
func writeCSV(w io.Writer, timestamps []float64, columns []column) error {
	bw := bufio.NewWriterSize(w, 1<<20)

	headerFields := make([]string, 0, len(columns)+1)
	headerFields = append(headerFields, "time")
	for _, c := range columns {
		headerFields = append(headerFields, c.name)
	}
	if err := writeRow(bw, headerFields); err != nil {
		return err
	}

	n := len(timestamps)
	row := make([]string, len(columns)+1)
	for start := 0; start < n; start += chunkRows {
		end := start + chunkRows
		if end > n {
			end = n
		}
		for i := start; i < end; i++ {
			row[0] = strconv.FormatFloat(timestamps[i], 'f', -1, 64)
			for j, c := range columns {
				row[j+1] = formatValue(c.dtype, c.values[i])
			}
			if err := writeRow(bw, row); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if _, err := bw.WriteString(";"); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(f); err != nil {
			return err
		}
	}
	_, err := bw.WriteString("\n")
	return err
}

func formatValue(dt DType, v float64) string {
	switch dt {
	case DTypeFloat32:
		return fmt.Sprintf("%.4g", v)
	case DTypeBool:
		if v != 0 {
			return "1"
		}
		return "0"
	default:
		return strconv.FormatInt(int64(v), 10)
	}
}
