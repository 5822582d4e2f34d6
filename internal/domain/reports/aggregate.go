package reports

import (
	"sort"
	"strconv"
	"strings"
)

// UnknownAnswer buckets rows whose answer is empty.
const UnknownAnswer = "Unknown"

// Row is the input of an aggregation: one stored answer of the selected question.
type Row struct {
	Answer    string `json:"answer"`
	SubDemand string `json:"sub_demand"`
}

// SubCount is one sub-demand inside an answer bucket. Percent is relative to
// the bucket's sub-demand-tagged rows.
type SubCount struct {
	Label   string `json:"label"`
	Count   int    `json:"count"`
	Percent string `json:"percent"`
}

// AnswerCount is one answer bucket. Percent is relative to all rows.
type AnswerCount struct {
	Answer  string     `json:"answer"`
	Count   int        `json:"count"`
	Percent string     `json:"percent"`
	Sub     []SubCount `json:"sub"`
}

// Summary is the derived breakdown of a question, recomputed on demand.
type Summary []AnswerCount

// Aggregate counts rows per answer and per sub-demand within each answer,
// sorted by count descending; ties keep first-appearance order.
func Aggregate(rows []Row) Summary {
	out := Summary{}
	if len(rows) == 0 {
		return out
	}

	type bucket struct {
		answer   string
		count    int
		subOrder []string
		subs     map[string]int
		subTotal int
	}
	var order []*bucket
	index := map[string]*bucket{}

	for _, r := range rows {
		key := r.Answer
		if key == "" {
			key = UnknownAnswer
		}
		b, ok := index[key]
		if !ok {
			b = &bucket{answer: key, subs: map[string]int{}}
			index[key] = b
			order = append(order, b)
		}
		b.count++

		if strings.TrimSpace(r.SubDemand) == "" {
			continue
		}
		if _, seen := b.subs[r.SubDemand]; !seen {
			b.subOrder = append(b.subOrder, r.SubDemand)
		}
		b.subs[r.SubDemand]++
		b.subTotal++
	}

	total := len(rows)
	for _, b := range order {
		sub := make([]SubCount, 0, len(b.subOrder))
		for _, label := range b.subOrder {
			c := b.subs[label]
			sub = append(sub, SubCount{Label: label, Count: c, Percent: Percent(c, b.subTotal)})
		}
		sort.SliceStable(sub, func(i, j int) bool { return sub[i].Count > sub[j].Count })

		out = append(out, AnswerCount{
			Answer:  b.answer,
			Count:   b.count,
			Percent: Percent(b.count, total),
			Sub:     sub,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Percent formats part/total*100 with one decimal, rounding half up.
func Percent(part, total int) string {
	if total <= 0 {
		return "0.0"
	}
	// tenths of a percent, exact integer arithmetic
	num := int64(part) * 1000
	den := int64(total)
	q, r := num/den, num%den
	if 2*r >= den {
		q++
	}
	return strconv.FormatInt(q/10, 10) + "." + strconv.FormatInt(q%10, 10)
}
