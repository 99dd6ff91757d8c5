package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"metadata-export/internal/engine"
	"metadata-export/internal/metadata"
)

// csvColumn is one column of the 5-row header/value block. Stream-sourced
// columns carry only path and value; labels and flags belong to the fixed
// system columns.
type csvColumn struct {
	path     string
	label    string
	reserved string
	flags    string
	value    any
}

// systemColumns builds the fixed columns bracketing the dynamic stream:
// publish status and index placement up front, one path column per
// download file, and the trailing fixed block.
func systemColumns(req Request) (leading, trailing []csvColumn) {
	leading = []csvColumn{
		{path: ".publish_status", flags: "Required", value: "private"},
		{path: ".metadata.path[0]", flags: "Allow Multiple", value: req.TargetIndex.Identifier},
		{path: ".pos_index[0]", flags: "Allow Multiple", value: req.TargetIndex.Title},
	}
	for i, file := range req.DownloadFiles {
		leading = append(leading, csvColumn{
			path:  fmt.Sprintf(".file_path[%d]", i),
			flags: "Allow Multiple",
			value: file.Name,
		})
	}

	feedbackMail := ""
	if req.User != nil {
		feedbackMail = req.User.Email
	}
	trailing = []csvColumn{
		{path: ".edit_mode", flags: "Required", value: "Keep"},
		{path: ".feedback_mail[0]", flags: "Allow Multiple", value: feedbackMail},
	}
	return leading, trailing
}

// writeCSVDocument emits the 6-row document: the item-type header followed
// by the five transposed header/value rows. Column order is the leading
// system block, then the stream in its sorted target-path order, then the
// trailing system block.
func writeCSVDocument(w io.Writer, itemType metadata.ItemType, stream []engine.Emission, leading, trailing []csvColumn) error {
	columns := make([]csvColumn, 0, len(leading)+len(stream)+len(trailing))
	columns = append(columns, leading...)
	for _, em := range stream {
		columns = append(columns, csvColumn{path: em.Path, value: em.Value})
	}
	columns = append(columns, trailing...)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"#ItemType", itemType.Name, itemType.SchemaURI}); err != nil {
		return err
	}

	rows := [5][]string{}
	for i := range rows {
		rows[i] = make([]string, len(columns))
	}
	for i, col := range columns {
		rows[0][i] = col.path
		rows[1][i] = col.label
		rows[2][i] = col.reserved
		rows[3][i] = col.flags
		rows[4][i] = cellString(col.value)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func cellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
