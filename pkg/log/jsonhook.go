/*
 *  This file is part of PETA.
 *  Copyright (C) 2025 The PETA Authors.
 *  PETA is free software: you can redistribute it and/or modify
 *  it under the terms of the GNU Affero General Public License as published by
 *  the Free Software Foundation, either version 3 of the License, or
 *  (at your option) any later version.
 *
 *  PETA is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 *  GNU Affero General Public License for more details.
 *
 *  You should have received a copy of the GNU Affero General Public License
 *  along with PETA. If not, see <https://www.gnu.org/licenses/>.
 */

package log

import (
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"io"
	"peta.io/peta/pkg/utils/queue"
)

func NewJSONHook(logFile string, async, prettyPrint bool, maxSize, maxAge, maxBackups int) *JSONHook {
	l := &lumberjack.Logger{
		Filename: logFile,
		// megabytes
		MaxSize: maxSize,
		// days
		MaxAge: maxAge,
		// Maximum number of backup files retained
		MaxBackups: maxBackups,
		LocalTime:  true,
		Compress:   true,
	}

	jsonFormatter := &JSONFormatter{
		PrettyPrint: prettyPrint,
	}

	q := queue.NewQueue(10, 100)
	q.Run()

	return &JSONHook{
		Writer:    l,
		Formatter: jsonFormatter,
		q:         q,
		async:     async,
	}
}

// JSONHook writes logs as JSON and save to files
type JSONHook struct {
	Writer    io.Writer
	Formatter logrus.Formatter
	q         queue.Queue
	async     bool
}

func (j *JSONHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (j *JSONHook) Fire(entry *logrus.Entry) error {
	clone := *entry
	formatted, err := j.Formatter.Format(&clone)
	if err != nil {
		return err
	}

	if !j.async {
		_, err = j.Writer.Write(formatted)
		return err
	}

	// writes to files in the background
	j.q.Push(queue.JobFunc(func() {
		_, _ = j.Writer.Write(formatted)
	}))
	return nil
}

func (j *JSONHook) Flush() {
	j.q.Terminate()
}
