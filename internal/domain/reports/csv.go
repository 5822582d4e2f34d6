package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
)

// WriteSummaryCSV writes a breakdown as "<question>,Count,Percent" with sub
// rows prefixed by an arrow.
func WriteSummaryCSV(w io.Writer, question string, s Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{question, "Count", "Percent"}); err != nil {
		return err
	}
	for _, a := range s {
		if err := cw.Write([]string{a.Answer, strconv.Itoa(a.Count), a.Percent + "%"}); err != nil {
			return err
		}
		for _, sub := range a.Sub {
			if err := cw.Write([]string{"↳ " + sub.Label, strconv.Itoa(sub.Count), sub.Percent + "%"}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAnswersCSV flattens answer rows into one line per (contact_id,
// call_date) with one column per question title, in first-seen order.
func WriteAnswersCSV(w io.Writer, rows []audits.AnswerRow) error {
	type line struct {
		contactID string
		callDate  string
		answers   map[string]string
	}
	var (
		titles    []string
		seenTitle = map[string]bool{}
		lines     []*line
		byKey     = map[string]*line{}
	)
	for _, r := range rows {
		if !seenTitle[r.QuestionTitle] {
			seenTitle[r.QuestionTitle] = true
			titles = append(titles, r.QuestionTitle)
		}
		date := r.CallDate.Format(audits.CallDateLayout)
		key := r.ContactID + "|" + date
		l, ok := byKey[key]
		if !ok {
			l = &line{contactID: r.ContactID, callDate: date, answers: map[string]string{}}
			byKey[key] = l
			lines = append(lines, l)
		}
		l.answers[r.QuestionTitle] = r.Answer
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"contact_id", "call_date"}, titles...)); err != nil {
		return err
	}
	for _, l := range lines {
		rec := make([]string, 0, len(titles)+2)
		rec = append(rec, l.contactID, l.callDate)
		for _, t := range titles {
			rec = append(rec, l.answers[t])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
