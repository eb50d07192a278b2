package net

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVLogger writes one row per epoch to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(m *Model) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		m.logger.Error("csv logger: open", "file", c.Filename, "err", err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		if err := c.write([]string{"epoch", "loss", "accuracy", "time_seconds"}); err != nil {
			m.logger.Error("csv logger: header", "file", c.Filename, "err", err)
		}
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, s Stats, m *Model) {
	if c.writer == nil {
		return
	}

	elapsed := time.Since(c.start).Seconds()
	record := []string{
		strconv.Itoa(epoch),
		strconv.FormatFloat(s.Loss, 'f', 6, 64),
		strconv.FormatFloat(s.Accuracy, 'f', 6, 64),
		strconv.FormatFloat(elapsed, 'f', 2, 64),
	}

	if err := c.write(record); err != nil {
		m.logger.Error("csv logger: write", "file", c.Filename, "err", err)
	}
}

// write flushes every record so that short writes surface immediately.
func (c *CSVLogger) write(record []string) error {
	if err := c.writer.Write(record); err != nil {
		return err
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVLogger) OnTrainEnd(m *Model) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
