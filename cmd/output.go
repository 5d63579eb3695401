// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// printer renders command results as tables or JSON.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	if format != outputJSON {
		format = outputTable
	}
	return &printer{w: w, format: format}
}

type propertyView struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Value string `json:"value"`
}

type containerView struct {
	Info       *types.ContainerInfo `json:"info"`
	Version    uint64               `json:"version,omitempty"`
	Properties []propertyView       `json:"properties,omitempty"`
}

func viewProperties(props property.Set) []propertyView {
	if props == nil {
		return nil
	}
	out := make([]propertyView, len(props))
	for i, e := range props {
		out[i] = propertyView{
			Name:  e.ID.String(),
			Code:  fmt.Sprintf("%#x", uint32(e.ID)),
			Value: formatValue(e.ID, e.Value),
		}
	}
	return out
}

// formatValue renders enum and size properties by name.
func formatValue(id property.ID, v property.Value) string {
	switch id {
	case property.IDChecksum:
		return property.ChecksumType(v.Enum()).String()
	case property.IDLayoutType:
		return property.Layout(v.Enum()).String()
	case property.IDChecksumChunkSize:
		if n := v.Uint64(); n > 0 {
			return fmt.Sprintf("%d (%s)", n, humanize.IBytes(n))
		}
	}
	return v.String()
}

func formatTime(nanos int64) string {
	if nanos == 0 {
		return "never"
	}
	return humanize.Time(time.Unix(0, nanos))
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table(header []string, rows [][]string) {
	t := tablewriter.NewWriter(p.w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetBorder(false)
	t.SetColumnSeparator("")
	t.SetHeaderLine(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.AppendBulk(rows)
	t.Render()
}

func (p *printer) container(info *types.ContainerInfo, props property.Set, version uint64) error {
	if p.format == outputJSON {
		return p.json(containerView{Info: info, Version: version, Properties: viewProperties(props)})
	}

	fmt.Fprintf(p.w, "Container:  %s\n", info.ID)
	fmt.Fprintf(p.w, "Pool:       %s\n", info.PoolID)
	fmt.Fprintf(p.w, "Version:    %d\n", version)
	fmt.Fprintf(p.w, "Created:    %s\n", formatTime(info.CreatedAt))
	fmt.Fprintf(p.w, "Handles:    %d\n", info.NumHandles)
	fmt.Fprintf(p.w, "Snapshots:  %s\n", formatSnapshots(info.Snapshots))
	if len(props) == 0 {
		return nil
	}
	fmt.Fprintln(p.w)

	rows := make([][]string, 0, len(props))
	for _, v := range viewProperties(props) {
		rows = append(rows, []string{v.Name, v.Code, v.Value})
	}
	p.table([]string{"PROPERTY", "CODE", "VALUE"}, rows)
	return nil
}

func formatSnapshots(epochs []uint64) string {
	switch len(epochs) {
	case 0:
		return "none"
	case 1:
		return strconv.FormatUint(epochs[0], 10)
	}
	return fmt.Sprintf("%d (latest %d)", len(epochs), epochs[len(epochs)-1])
}

func (p *printer) handle(h types.Handle) error {
	if p.format == outputJSON {
		return p.json(h)
	}
	fmt.Fprintln(p.w, h.ID)
	return nil
}

func (p *printer) version(id uuid.UUID, version uint64) error {
	if p.format == outputJSON {
		return p.json(map[string]any{"id": id, "version": version})
	}
	fmt.Fprintf(p.w, "Container %s updated to version %d\n", id, version)
	return nil
}

func (p *printer) snapshot(id uuid.UUID, epoch uint64) error {
	if p.format == outputJSON {
		return p.json(map[string]any{"id": id, "epoch": epoch})
	}
	fmt.Fprintf(p.w, "Snapshot %d created on container %s\n", epoch, id)
	return nil
}

func (p *printer) list(rows []listRow, ids []property.ID) error {
	if p.format == outputJSON {
		views := make([]containerView, len(rows))
		for i, r := range rows {
			views[i] = containerView{Info: r.Info, Version: r.Version, Properties: viewProperties(r.Properties)}
		}
		return p.json(views)
	}

	header := []string{"CONTAINER", "POOL", "CREATED", "HANDLES", "SNAPSHOTS"}
	for _, id := range ids {
		header = append(header, id.String())
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := []string{
			r.Info.ID.String(),
			r.Info.PoolID.String(),
			formatTime(r.Info.CreatedAt),
			strconv.Itoa(r.Info.NumHandles),
			formatSnapshots(r.Info.Snapshots),
		}
		for _, e := range r.Properties {
			row = append(row, formatValue(e.ID, e.Value))
		}
		out = append(out, row)
	}
	p.table(header, out)
	fmt.Fprintf(p.w, "\n%s containers\n", humanize.Comma(int64(len(rows))))
	return nil
}
