package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"pettycash/internal/model"
)

// CSVHeader is the first row of every CSV export
var CSVHeader = []string{"ID", "Date", "Purpose", "Amount", "Recipient", "Status", "Created By", "Approved By", "Approved Date"}

// WriteCSV writes the header and one row per expense, in the given order
func WriteCSV(w io.Writer, expenses []model.Expense) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range expenses {
		e := &expenses[i]
		row := []string{
			strconv.FormatInt(e.ID, 10),
			formatDate(e.CreatedAt),
			e.Purpose,
			formatAmount(e),
			e.RecipientName,
			formatStatus(e.Status),
			e.CreatorName,
			approverName(e),
			approvedDate(e),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("error flushing CSV writer: %w", err)
	}
	return nil
}
