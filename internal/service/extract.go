package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fundwatch/internal/models"

	"github.com/PaesslerAG/jsonpath"
	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var dateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// quoteFields are the raw strings read from the upstream before the tier
// policy is applied. Empty means absent.
type quoteFields struct {
	EstimateValue string
	EstimateRate  string
	EstimateTime  string
	SettledValue  string
	SettledRate   string
	SettledDate   string
}

// merge fills the blanks of q from other.
func (q quoteFields) merge(other quoteFields) quoteFields {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return quoteFields{
		EstimateValue: pick(q.EstimateValue, other.EstimateValue),
		EstimateRate:  pick(q.EstimateRate, other.EstimateRate),
		EstimateTime:  pick(q.EstimateTime, other.EstimateTime),
		SettledValue:  pick(q.SettledValue, other.SettledValue),
		SettledRate:   pick(q.SettledRate, other.SettledRate),
		SettledDate:   pick(q.SettledDate, other.SettledDate),
	}
}

// live reports the live estimate when both its value and rate are present.
func (q quoteFields) live() (models.Valuation, bool) {
	if q.EstimateValue == "" || q.EstimateRate == "" {
		return models.Valuation{}, false
	}
	return models.Valuation{
		Value: q.EstimateValue,
		Rate:  normalizeRate(q.EstimateRate),
		Kind:  models.ValuationLive,
		AsOf:  q.EstimateTime,
	}, true
}

// resolve applies the tiers in order: live estimate, latest settled value,
// unknown.
func resolve(q quoteFields) models.Valuation {
	if v, ok := q.live(); ok {
		return v
	}
	if q.SettledValue == "" {
		return models.UnknownValuation()
	}
	v := models.Valuation{
		Value: q.SettledValue,
		Rate:  models.NoData,
		Kind:  models.ValuationSettled,
		AsOf:  q.SettledDate,
	}
	if q.SettledRate != "" {
		v.Rate = normalizeRate(q.SettledRate)
	}
	return v
}

// clean trims s and maps the site's placeholders to "".
func clean(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "--", "---", "-", models.NoData:
		return ""
	}
	return s
}

// normalizeRate renders a change rate as a signed percentage with two
// decimals, e.g. "+0.45%". Unparseable input is returned trimmed.
func normalizeRate(raw string) string {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// parseEstimate reads the estimate JSONP payload:
//
//	jsonpgz({"fundcode":"000311","jzrq":"2024-05-10","dwjz":"1.2345","gsz":"1.2400","gszzl":"0.45","gztime":"2024-05-13 15:00"});
//
// An empty call, jsonpgz();, means no estimate is published for the fund.
func parseEstimate(body []byte) (quoteFields, error) {
	s := strings.TrimSpace(string(body))
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if !strings.HasPrefix(s, "jsonpgz") || open < 0 || end < open {
		return quoteFields{}, fmt.Errorf("unexpected estimate payload %q", models.Truncate(s, 40))
	}
	inner := strings.TrimSpace(s[open+1 : end])
	if inner == "" {
		return quoteFields{}, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(inner), &doc); err != nil {
		return quoteFields{}, fmt.Errorf("decode estimate: %w", err)
	}
	return quoteFields{
		EstimateValue: lookup(doc, "$.gsz"),
		EstimateRate:  lookup(doc, "$.gszzl"),
		EstimateTime:  lookup(doc, "$.gztime"),
		SettledValue:  lookup(doc, "$.dwjz"),
		SettledDate:   lookup(doc, "$.jzrq"),
	}, nil
}

func lookup(doc any, path string) string {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return ""
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		v = list[0]
	}
	switch t := v.(type) {
	case string:
		return clean(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// parseDetail reads the fund detail page. The estimate spans are filled by
// script on the live site, so they are often placeholders in the raw HTML.
func parseDetail(body []byte) (quoteFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return quoteFields{}, fmt.Errorf("parse detail page: %w", err)
	}

	q := quoteFields{
		EstimateValue: clean(doc.Find("#gz_gsz").First().Text()),
		EstimateRate:  clean(doc.Find("#gz_gszzl").First().Text()),
		EstimateTime:  clean(strings.Trim(strings.TrimSpace(doc.Find("#gz_gztime").First().Text()), "()（）")),
	}

	item := doc.Find("dl.dataItem02").First()
	if item.Length() > 0 {
		nums := item.Find("dd.dataNums")
		q.SettledValue = clean(nums.Find("span.ui-font-large").First().Text())
		q.SettledRate = clean(nums.Find("span.ui-font-middle").First().Text())
		q.SettledDate = dateRe.FindString(item.Find("dt").First().Text())
	}
	return q, nil
}
