/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("verbose"))
}

func TestNewLogger_Registry(t *testing.T) {
	l := NewLogger("REGISTRY_TEST")
	assert.Same(t, l, NewLogger("REGISTRY_TEST"))

	assert.True(t, SetLoggerLevel("REGISTRY_TEST", "error"))
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())
	assert.False(t, SetLoggerLevel("NOT_REGISTERED", "error"))
}

func TestLog4jColorFormatter(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "DATABASE", NameWidth: 10, DisableColors: true}
	entry := &logrus.Entry{
		Time:    time.Date(2025, 3, 1, 10, 4, 5, 6e6, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "slow query",
		Data:    logrus.Fields{"duration": "2s", "b": 1},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)
	line := string(out)
	assert.True(t, strings.HasPrefix(line, "2025-03-01 10:04:05.006 WARNING "))
	assert.Contains(t, line, "--- [  DATABASE] : slow query b=1 duration=2s\n")
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "DATABASE"}
	entry := &logrus.Entry{
		Time:    time.Date(2025, 3, 1, 10, 4, 5, 0, time.UTC),
		Level:   logrus.ErrorLevel,
		Message: "failed",
		Data:    logrus.Fields{"error": errors.New("boom")},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "DATABASE", rec["logger"])
	assert.Equal(t, map[string]interface{}{"error": "boom"}, rec["fields"])
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	l := NewLogger("OUTPUT_TEST")
	l.SetLevel(logrus.InfoLevel)
	l.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("ORMKIT_TEST_FLAG", "yes")
	t.Setenv("ORMKIT_TEST_NAME", "")
	assert.True(t, EnvDefaultBool("ORMKIT_TEST_FLAG", false))
	assert.False(t, EnvDefaultBool("ORMKIT_TEST_MISSING", false))
	assert.Equal(t, "x", EnvDefaultString("ORMKIT_TEST_NAME", "x"))
}
