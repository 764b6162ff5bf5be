// Package export writes stored leads to a spreadsheet for CRM import.
package export

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/outboundlabs/leadflow/internal/model"
)

var columns = []string{
	"Company", "Contact Name", "Title", "Email", "Email Verified",
	"Phone", "Website", "Industry", "Employees", "City", "Country",
	"LinkedIn", "Source", "Lead Score", "Status", "Date Added",
	"Last Contact", "Emails Sent", "Opens", "Clicks", "Response", "Notes",
}

// WriteXLSX writes leads to an XLSX workbook at path, one row per lead.
func WriteXLSX(path string, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	for _, l := range leads {
		row := sheet.AddRow()
		row.AddCell().SetString(l.Company)
		row.AddCell().SetString(l.ContactName)
		row.AddCell().SetString(l.Title)
		row.AddCell().SetString(l.Email)
		row.AddCell().SetBool(l.EmailVerified)
		row.AddCell().SetString(l.Phone)
		row.AddCell().SetString(l.Website)
		row.AddCell().SetString(l.Industry)
		row.AddCell().SetInt(l.EmployeeCount)
		row.AddCell().SetString(l.City)
		row.AddCell().SetString(l.Country)
		row.AddCell().SetString(l.LinkedIn)
		row.AddCell().SetString(l.Source)
		row.AddCell().SetInt(l.LeadScore)
		row.AddCell().SetString(string(l.Status))
		row.AddCell().SetString(formatDate(l.DateAdded))
		row.AddCell().SetString(formatDatePtr(l.LastContact))
		row.AddCell().SetString(fmt.Sprintf("%d/%d", l.SentCount(), model.SequenceSteps))
		row.AddCell().SetInt(l.Opens)
		row.AddCell().SetInt(l.Clicks)
		row.AddCell().SetString(l.Response)
		row.AddCell().SetString(l.Notes)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}
