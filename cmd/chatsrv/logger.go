package main

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LineFormatter - renders one log entry per line with a fixed timestamp
// layout and sorted fields.
type LineFormatter struct{}

func (f *LineFormatter) Format(e *log.Entry) ([]byte, error) {
	data := bytes.NewBuffer(make([]byte, 0, 128))
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if data.Len() > 0 {
			data.WriteByte(' ')
		}
		data.WriteString(fmt.Sprintf("%s=%v", k, e.Data[k]))
	}

	stamp := e.Time.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())
	var msg string
	if data.Len() > 0 {
		msg = fmt.Sprintf("[%s] %s %s (%s)\n", stamp, level, e.Message, data)
	} else {
		msg = fmt.Sprintf("[%s] %s %s\n", stamp, level, e.Message)
	}
	return []byte(msg), nil
}
