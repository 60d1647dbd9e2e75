// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package record

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/wiskess/pipeline"
)

var processElement = JSONElement(`{"id": "process--920d7c41-0fef-4cf8-bce2-ead120f6b506", "type": "process", "name": "mft_parse", "group": "wiskers", "command_line": "MFTECmd.exe -f C:\\$MFT", "return_code": 0}`)

func TestNewOpen(t *testing.T) {
	dir := t.TempDir()
	url := filepath.Join(dir, "case", FileName)

	_, err := Open(url)
	assert.ErrorIs(t, err, ErrStoreNotExists)

	store, err := New(url)
	require.NoError(t, err)
	_, err = store.Insert(processElement)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = New(url)
	assert.ErrorIs(t, err, ErrStoreExists)

	store, err = OpenOrCreate(url)
	require.NoError(t, err)
	defer store.Close() // nolint:errcheck
	elements, err := store.All()
	require.NoError(t, err)
	assert.Len(t, elements, 1)

	views, err := store.Select([]map[string]string{{"type": "process"}})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestStore_Insert(t *testing.T) {
	tests := []struct {
		name    string
		element JSONElement
		wantID  string
		wantErr bool
	}{
		{"with id", processElement, "process--920d7c41-0fef-4cf8-bce2-ead120f6b506", false},
		{"without id", JSONElement(`{"type": "process", "name": "hayabusa"}`), "process--", false},
		{"without type", JSONElement(`{"name": "hayabusa"}`), "", true},
		{"no object", JSONElement(`[{"type": "process"}]`), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(":memory:")
			require.NoError(t, err)
			defer store.Close() // nolint:errcheck

			id, err := store.Insert(tt.element)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, id, tt.wantID)

			element, err := store.Get(id)
			require.NoError(t, err)
			assert.Equal(t, id, gjson.GetBytes(element, "id").String())
		})
	}
}

func TestStore_Select(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	defer store.Close() // nolint:errcheck

	for _, element := range []string{
		`{"type": "process", "name": "mft_parse", "group": "wiskers"}`,
		`{"type": "process", "name": "hayabusa", "group": "wiskers"}`,
		`{"type": "process", "name": "tln", "group": "enrichers"}`,
		`{"type": "file", "name": "mft.csv"}`,
	} {
		_, err := store.Insert(JSONElement(element))
		require.NoError(t, err)
	}

	tests := []struct {
		name       string
		conditions []map[string]string
		want       int
	}{
		{"all", nil, 4},
		{"type", []map[string]string{{"type": "process"}}, 3},
		{"and", []map[string]string{{"type": "process", "group": "wiskers"}}, 2},
		{"or", []map[string]string{{"name": "tln"}, {"name": "mft%"}}, 3},
		{"quoted", []map[string]string{{"name": "x' OR '1'='1"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements, err := store.Select(tt.conditions)
			require.NoError(t, err)
			assert.Len(t, elements, tt.want)
		})
	}

	found, err := store.Search("hayabusa")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = store.Get("process--missing")
	assert.Error(t, err)
}

func TestStore_Record(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	defer store.Close() // nolint:errcheck

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var recorder pipeline.Recorder = store
	require.NoError(t, recorder.Record(pipeline.Outcome{
		Group:       "wiskers",
		Task:        "hayabusa",
		Input:       "/eve/Windows/System32/winevt/Logs",
		CommandLine: "hayabusa csv-timeline -d /eve/Windows/System32/winevt/Logs",
		Started:     started,
		Ended:       started.Add(time.Minute),
		ReturnCode:  1,
		Errors:      []string{"process-failed: exit code 1"},
	}))
	require.NoError(t, recorder.Record(pipeline.Outcome{Group: "wiskers", Task: "mft_parse", Started: started, Ended: started}))

	elements, err := store.Select([]map[string]string{{"name": "hayabusa"}})
	require.NoError(t, err)
	require.Len(t, elements, 1)

	element := elements[0]
	assert.Regexp(t, `^process--[0-9a-f-]{36}$`, gjson.GetBytes(element, "id").String())
	assert.Equal(t, "process", gjson.GetBytes(element, "type").String())
	assert.Equal(t, "wiskers", gjson.GetBytes(element, "group").String())
	assert.Equal(t, "/eve/Windows/System32/winevt/Logs", gjson.GetBytes(element, "artifact").String())
	assert.Equal(t, "2024-03-01T12:00:00Z", gjson.GetBytes(element, "created_time").String())
	assert.Equal(t, "2024-03-01T12:01:00Z", gjson.GetBytes(element, "end_time").String())
	assert.Equal(t, int64(1), gjson.GetBytes(element, "return_code").Int())
	assert.Equal(t, "process-failed: exit code 1", gjson.GetBytes(element, "errors.0").String())

	elements, err = store.Select([]map[string]string{{"name": "mft_parse"}})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.False(t, gjson.GetBytes(elements[0], "errors").Exists())
	assert.True(t, gjson.GetBytes(elements[0], "return_code").Exists())
}

func Test_lower(t *testing.T) {
	type args struct {
		f interface{}
	}
	tests := []struct {
		name string
		args args
		want interface{}
	}{
		{"Map", args{map[string]interface{}{"CommandLine": "B"}}, map[string]interface{}{"command_line": "B"}},
		{"ID", args{map[string]interface{}{"ID": "x"}}, map[string]interface{}{"id": "x"}},
		{"Empty", args{map[string]interface{}{"Errors": []string{}, "Name": ""}}, map[string]interface{}{}},
		{"List", args{[]interface{}{"A", "B"}}, []interface{}{"A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lower(tt.args.f); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lower() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_typeMap_all(t *testing.T) {
	rm := newTypeMap()
	assert.False(t, rm.changed)
	rm.addAll("process", map[string]interface{}{"name": "x", "type": "process"})
	rm.addAll("process", map[string]interface{}{"name": "y"})
	assert.True(t, rm.changed)
	want := map[string]map[string]bool{"process": {"name": true, "type": true}}
	if got := rm.all(); !reflect.DeepEqual(got, want) {
		t.Errorf("all() = %v, want %v", got, want)
	}
}
