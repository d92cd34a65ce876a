package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Receiving modes.
const (
	ModeInvoiceFirst = "invoice-first"
	ModeScanFirst    = "scan-first"
	ModeDocument     = "document"
)

// Line statuses while receiving.
const (
	LineStatusPending  = "pending"
	LineStatusVerified = "verified"
	LineStatusShort    = "short"
	LineStatusOver     = "over"
	LineStatusMissing  = "missing"
)

// ExpectedLine is an invoice line as the receiving associate checks it in.
type ExpectedLine struct {
	LineNumber  int    `json:"line_number"`
	UPC         string `json:"upc,omitempty"`
	ItemCode    string `json:"item_code,omitempty"`
	Description string `json:"description"`
	ExpectedQty int    `json:"expected_qty"`
}

// ExpectedLines derives receiving lines from invoice lines. Quantities are
// whole units; fractional invoiced quantities round to the nearest unit.
func ExpectedLines(items []LineItem) []ExpectedLine {
	out := make([]ExpectedLine, len(items))
	for i, it := range items {
		out[i] = ExpectedLine{
			LineNumber:  it.LineNumber,
			UPC:         it.UPC,
			ItemCode:    it.ItemCode,
			Description: it.Description,
			ExpectedQty: int(it.Quantity.Round(0).IntPart()),
		}
	}
	return out
}

// LineState is the receiving state of one expected line.
type LineState struct {
	ExpectedLine
	ReceivedQty int    `json:"received_qty"`
	Status      string `json:"status"`

	variants map[string]bool
}

// ScanEvent is one barcode read. Quantity defaults to 1.
type ScanEvent struct {
	Barcode       string    `json:"barcode"`
	Format        string    `json:"format,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Quantity      int       `json:"quantity,omitempty"`
	MatchedLineID *int      `json:"matched_line_id,omitempty"`
}

// UnmatchedScan is a barcode not on the invoice.
type UnmatchedScan struct {
	Barcode   string    `json:"barcode"`
	Format    string    `json:"format,omitempty"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ScanResult tells the scanner what a read did.
type ScanResult struct {
	Matched     bool   `json:"matched"`
	LineNumber  int    `json:"line_number,omitempty"`
	Status      string `json:"status"`
	ReceivedQty int    `json:"received_qty"`
}

// Adjustment is a manual +/- on a line's received quantity.
type Adjustment struct {
	LineNumber int `json:"line_number"`
	Delta      int `json:"delta"`
}

type ReceivingStats struct {
	Verified     int `json:"verified"`
	Short        int `json:"short"`
	Over         int `json:"over"`
	Pending      int `json:"pending"`
	Missing      int `json:"missing"`
	NotOnInvoice int `json:"not_on_invoice"`
}

// Session tracks invoice-first receiving of one delivery. It is not safe
// for concurrent use.
type Session struct {
	lines     []*LineState
	byNumber  map[int]*LineState
	unmatched []*UnmatchedScan
	scans     []ScanEvent
}

func NewSession(lines []ExpectedLine) *Session {
	s := &Session{
		lines:    make([]*LineState, 0, len(lines)),
		byNumber: make(map[int]*LineState, len(lines)),
	}
	for _, l := range lines {
		ls := &LineState{
			ExpectedLine: l,
			Status:       LineStatusPending,
			variants:     make(map[string]bool),
		}
		for _, v := range UPCVariants(l.UPC) {
			ls.variants[v] = true
		}
		s.lines = append(s.lines, ls)
		if _, dup := s.byNumber[l.LineNumber]; !dup {
			s.byNumber[l.LineNumber] = ls
		}
	}
	return s
}

func (ls *LineState) matches(barcode, digits string) bool {
	if digits != "" && ls.variants[digits] {
		return true
	}
	code := strings.TrimSpace(ls.ItemCode)
	return code != "" && strings.EqualFold(code, barcode)
}

func (ls *LineState) evaluate() {
	switch {
	case ls.ReceivedQty == 0:
		ls.Status = LineStatusPending
	case ls.ReceivedQty == ls.ExpectedQty:
		ls.Status = LineStatusVerified
	case ls.ReceivedQty < ls.ExpectedQty:
		ls.Status = LineStatusShort
	default:
		ls.Status = LineStatusOver
	}
}

// Scan applies a barcode read. When several lines carry the code, the first
// one not yet fulfilled receives it.
func (s *Session) Scan(ev ScanEvent) ScanResult {
	if ev.Quantity <= 0 {
		ev.Quantity = 1
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	barcode := strings.TrimSpace(ev.Barcode)
	digits := CanonicalUPC(barcode)

	var target *LineState
	for _, ls := range s.lines {
		if !ls.matches(barcode, digits) {
			continue
		}
		if target == nil {
			target = ls
		}
		if ls.ReceivedQty < ls.ExpectedQty {
			target = ls
			break
		}
	}

	if target == nil {
		s.recordUnmatched(barcode, ev)
		ev.MatchedLineID = nil
		s.scans = append(s.scans, ev)
		return ScanResult{Status: "not_on_invoice"}
	}

	target.ReceivedQty += ev.Quantity
	target.evaluate()

	n := target.LineNumber
	ev.MatchedLineID = &n
	s.scans = append(s.scans, ev)

	return ScanResult{
		Matched:     true,
		LineNumber:  target.LineNumber,
		Status:      target.Status,
		ReceivedQty: target.ReceivedQty,
	}
}

func (s *Session) recordUnmatched(barcode string, ev ScanEvent) {
	for _, u := range s.unmatched {
		if u.Barcode == barcode {
			u.Count += ev.Quantity
			u.LastSeen = ev.Timestamp
			return
		}
	}
	s.unmatched = append(s.unmatched, &UnmatchedScan{
		Barcode:   barcode,
		Format:    ev.Format,
		Count:     ev.Quantity,
		FirstSeen: ev.Timestamp,
		LastSeen:  ev.Timestamp,
	})
}

// Adjust changes a line's received quantity by delta, never below zero.
func (s *Session) Adjust(lineNumber, delta int) error {
	ls, ok := s.byNumber[lineNumber]
	if !ok {
		return &ValidationError{Fields: map[string]string{
			"adjustments.line_number": fmt.Sprintf("unknown line %d", lineNumber),
		}}
	}
	ls.ReceivedQty += delta
	if ls.ReceivedQty < 0 {
		ls.ReceivedQty = 0
	}
	ls.evaluate()
	return nil
}

// MarkRemainingVerified receives every still pending line in full. Short and
// over lines keep their counts. It returns the number of lines changed.
func (s *Session) MarkRemainingVerified() int {
	n := 0
	for _, ls := range s.lines {
		if ls.Status != LineStatusPending {
			continue
		}
		ls.ReceivedQty = ls.ExpectedQty
		ls.Status = LineStatusVerified
		n++
	}
	return n
}

// Close turns lines nobody scanned or verified into missing lines.
func (s *Session) Close() {
	for _, ls := range s.lines {
		if ls.Status == LineStatusPending {
			ls.Status = LineStatusMissing
		}
	}
}

func (s *Session) Stats() ReceivingStats {
	var st ReceivingStats
	for _, ls := range s.lines {
		switch ls.Status {
		case LineStatusVerified:
			st.Verified++
		case LineStatusShort:
			st.Short++
		case LineStatusOver:
			st.Over++
		case LineStatusPending:
			st.Pending++
		case LineStatusMissing:
			st.Missing++
		}
	}
	st.NotOnInvoice = len(s.unmatched)
	return st
}

// NeedsReview is true when any line is short, over or missing, or any
// scanned item was not on the invoice.
func (s *Session) NeedsReview() bool {
	st := s.Stats()
	return st.Short > 0 || st.Over > 0 || st.Missing > 0 || st.NotOnInvoice > 0
}

// Line returns the state of a line by number.
func (s *Session) Line(lineNumber int) (LineState, bool) {
	ls, ok := s.byNumber[lineNumber]
	if !ok {
		return LineState{}, false
	}
	return *ls, true
}

func (s *Session) Lines() []LineState {
	out := make([]LineState, len(s.lines))
	for i, ls := range s.lines {
		out[i] = *ls
	}
	return out
}

func (s *Session) Unmatched() []UnmatchedScan {
	out := make([]UnmatchedScan, len(s.unmatched))
	for i, u := range s.unmatched {
		out[i] = *u
	}
	return out
}

// Scans returns every applied read with its matched line.
func (s *Session) Scans() []ScanEvent {
	return append([]ScanEvent(nil), s.scans...)
}

// Replay rebuilds a session from a client's recorded scans and
// adjustments, in that order.
func Replay(lines []ExpectedLine, scans []ScanEvent, adjustments []Adjustment, markRemaining bool) (*Session, error) {
	s := NewSession(lines)
	for _, ev := range scans {
		s.Scan(ev)
	}
	for _, adj := range adjustments {
		if err := s.Adjust(adj.LineNumber, adj.Delta); err != nil {
			return nil, err
		}
	}
	if markRemaining {
		s.MarkRemainingVerified()
	}
	return s, nil
}
