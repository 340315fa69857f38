package export

import (
	"fmt"
	"image/png"
	"io"
	"os"

	"pettycash/internal/model"

	"github.com/go-pdf/fpdf"
)

// SignatureFiles resolves stored signature references to files on disk
type SignatureFiles interface {
	Path(ref string) (string, error)
	Exists(ref string) bool
}

// Layout in points on a Letter page.
const (
	margin      = 56.0
	keyWidth    = 150.0
	valueWidth  = 350.0
	sigLabelW   = 100.0
	sigContentW = 400.0
	sigImageW   = 150.0
	sigImageH   = 75.0
	cellPad     = 8.0
	lineHeight  = 12.0
)

// WriteVoucher renders the expense voucher PDF to w
func WriteVoucher(w io.Writer, e *model.Expense, files SignatureFiles) error {
	return writeVoucher(w, e, files, true)
}

func writeVoucher(w io.Writer, e *model.Expense, files SignatureFiles, compress bool) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(fmt.Sprintf("Expense voucher #%d", e.ID), true)
	pdf.AddPage()

	v := &voucher{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 24, "EXPENSE VOUCHER", "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	for _, kv := range detailRows(e) {
		v.detailRow(kv[0], kv[1])
	}
	pdf.Ln(20)

	v.ensureSpace(40)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 18, "Signatures:", "", 1, "L", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	for _, slot := range signatureSlots(e) {
		path, ok := usableImage(files, slot.ref)
		if !ok {
			continue
		}
		v.signatureRows(slot.label, path, slot.name)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render voucher: %w", err)
	}
	return nil
}

func detailRows(e *model.Expense) [][2]string {
	rows := [][2]string{
		{"Expense ID:", fmt.Sprintf("#%d", e.ID)},
		{"Date:", formatDate(e.CreatedAt)},
		{"Status:", formatStatus(e.Status)},
		{"Purpose:", e.Purpose},
		{"Amount:", formatAmount(e)},
		{"Recipient:", e.RecipientName},
		{"Created By:", e.CreatorName},
	}
	if e.Status == model.StatusApproved {
		rows = append(rows,
			[2]string{"Approved By:", approverName(e)},
			[2]string{"Approved Date:", approvedDate(e)},
		)
	}
	if e.Status == model.StatusRejected && e.RejectionReason != nil {
		rows = append(rows, [2]string{"Rejection Reason:", *e.RejectionReason})
	}
	return rows
}

type signatureSlot struct {
	label string
	ref   *string
	name  string
}

func signatureSlots(e *model.Expense) []signatureSlot {
	return []signatureSlot{
		{"Recipient:", e.RecipientSignature, e.RecipientName},
		{"Employee:", e.EmployeeSignature, e.CreatorName},
		{"Senior:", e.SeniorSignature, approverName(e)},
	}
}

// usableImage skips missing references, missing files and files that are not PNG.
func usableImage(files SignatureFiles, ref *string) (string, bool) {
	if files == nil || ref == nil || *ref == "" || !files.Exists(*ref) {
		return "", false
	}
	path, err := files.Path(*ref)
	if err != nil {
		return "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	if _, err := png.DecodeConfig(f); err != nil {
		return "", false
	}
	return path, true
}

type voucher struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (v *voucher) ensureSpace(h float64) {
	_, pageH := v.pdf.GetPageSize()
	if v.pdf.GetY()+h > pageH-margin {
		v.pdf.AddPage()
	}
}

// detailRow draws a key cell on grey and a wrapped value cell, both with a grid border.
func (v *voucher) detailRow(key, value string) {
	lines := v.pdf.SplitText(v.tr(value), valueWidth-2*cellPad)
	h := float64(max(len(lines), 1))*lineHeight + 2*cellPad
	v.ensureSpace(h)

	x, y := v.pdf.GetXY()
	v.pdf.SetDrawColor(0, 0, 0)
	v.pdf.SetFillColor(211, 211, 211)
	v.pdf.Rect(x, y, keyWidth, h, "FD")
	v.pdf.Rect(x+keyWidth, y, valueWidth, h, "D")

	v.pdf.SetXY(x+cellPad, y+cellPad)
	v.pdf.CellFormat(keyWidth-2*cellPad, lineHeight, v.tr(key), "", 0, "L", false, 0, "")
	for i, line := range lines {
		v.pdf.SetXY(x+keyWidth+cellPad, y+cellPad+float64(i)*lineHeight)
		v.pdf.CellFormat(valueWidth-2*cellPad, lineHeight, line, "", 0, "L", false, 0, "")
	}
	v.pdf.SetXY(x, y+h)
}

// signatureRows draws the labelled image row followed by the signer's name.
func (v *voucher) signatureRows(label, path, name string) {
	imgH := sigImageH + 2*cellPad
	nameH := lineHeight + 2*cellPad
	v.ensureSpace(imgH + nameH)

	x, y := v.pdf.GetXY()
	v.pdf.SetDrawColor(128, 128, 128)
	v.pdf.Rect(x, y, sigLabelW, imgH, "D")
	v.pdf.Rect(x+sigLabelW, y, sigContentW, imgH, "D")
	v.pdf.Rect(x, y+imgH, sigLabelW, nameH, "D")
	v.pdf.Rect(x+sigLabelW, y+imgH, sigContentW, nameH, "D")

	v.pdf.SetXY(x+cellPad, y+cellPad)
	v.pdf.CellFormat(sigLabelW-2*cellPad, lineHeight, v.tr(label), "", 0, "L", false, 0, "")
	v.pdf.ImageOptions(path, x+sigLabelW+cellPad, y+cellPad, sigImageW, sigImageH, false,
		fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	v.pdf.SetFont("Helvetica", "", 10)
	v.pdf.SetXY(x+sigLabelW+cellPad, y+imgH+cellPad)
	v.pdf.CellFormat(sigContentW-2*cellPad, lineHeight, v.tr(name), "", 0, "L", false, 0, "")
	v.pdf.SetFont("Helvetica", "B", 10)

	v.pdf.SetXY(x, y+imgH+nameH)
}
