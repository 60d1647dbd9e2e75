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

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/wiskess/record"
)

// Records is the wiskess records commandline subcommand
func Records() *cobra.Command {
	var name, id, search string
	recordsCommand := &cobra.Command{
		Use:   "records <forensicstore>",
		Short: "Print the process records of a run",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			return exists(args[0])
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := record.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close() // nolint:errcheck

			var elements []record.JSONElement
			switch {
			case id != "":
				var element record.JSONElement
				element, err = store.Get(id)
				elements = append(elements, element)
			case search != "":
				elements, err = store.Search(search)
			case name != "":
				elements, err = store.Select([]map[string]string{{"type": "process", "name": name}})
			default:
				elements, err = store.All()
			}
			if err != nil {
				return err
			}

			raw := make([]json.RawMessage, len(elements))
			for i, element := range elements {
				raw[i] = json.RawMessage(element)
			}
			b, err := json.Marshal(raw)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return err
		},
	}
	recordsCommand.Flags().StringVar(&name, "name", "", "only print records of this task")
	recordsCommand.Flags().StringVar(&id, "id", "", "only print the record with this id")
	recordsCommand.Flags().StringVar(&search, "search", "", "full text search in all records")
	return recordsCommand
}
