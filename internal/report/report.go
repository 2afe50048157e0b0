package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"netdoc/internal/inventory"

	"github.com/xuri/excelize/v2"
)

// Table names one section of a branch report.
type Table string

const (
	TableDevices     Table = "devices"
	TableConnections Table = "connections"
	TablePanels      Table = "panels"
)

var Tables = []Table{TableDevices, TableConnections, TablePanels}

func ParseTable(s string) (Table, error) {
	for _, t := range Tables {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown report table %q", s)
}

func (t Table) title() string {
	switch t {
	case TableDevices:
		return "Devices"
	case TableConnections:
		return "Connections"
	default:
		return "Patch Panels"
	}
}

// Rows renders one table, header first. Connections are listed in display
// order, highest ranked device type first.
func Rows(rep inventory.Report, t Table) [][]string {
	switch t {
	case TableDevices:
		out := [][]string{{"Name", "Type", "Model", "Manufacturer", "IP Address", "Location", "Status", "Ports"}}
		for _, d := range rep.Devices {
			out = append(out, []string{
				d.Name, d.Type, d.Model, d.Manufacturer, d.IPAddress, d.Location,
				string(d.Status), strconv.Itoa(len(d.Ports)),
			})
		}
		return out
	case TableConnections:
		out := [][]string{{"Source Device", "Source Port", "Target Device", "Target Port"}}
		for _, l := range inventory.DisplayOrder(rep.Links) {
			out = append(out, []string{
				l.Source.DeviceName, portName(l.Source),
				l.Target.DeviceName, portName(l.Target),
			})
		}
		return out
	default:
		out := [][]string{{"Patch Panel", "Port", "Label", "Status", "Connected To", "Peer Port"}}
		for _, p := range rep.Panels {
			for _, r := range p.Rows {
				peer, peerPort := "", ""
				if r.Peer != nil {
					peer, peerPort = r.Peer.DeviceName, strconv.Itoa(r.Peer.PortNumber)
				}
				out = append(out, []string{
					p.Name, strconv.Itoa(r.PortNumber), r.Label, string(r.Status), peer, peerPort,
				})
			}
		}
		return out
	}
}

func portName(e inventory.Endpoint) string {
	if e.PortLabel != "" {
		return fmt.Sprintf("%d (%s)", e.PortNumber, e.PortLabel)
	}
	return strconv.Itoa(e.PortNumber)
}

func WriteCSV(w io.Writer, rep inventory.Report, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Rows(rep, t)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with one sheet per table.
func WriteXLSX(w io.Writer, rep inventory.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range Tables {
		sheet := t.title()
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		for r, row := range Rows(rep, t) {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			vals := make([]any, len(row))
			for j, v := range row {
				vals[j] = v
			}
			if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", sheet, r+1, err)
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
