package analytics

import (
	"strings"
	"time"
)

// ReportKind identifies which marketplace report a record came from.
type ReportKind string

const (
	KindSale    ReportKind = "sale"
	KindStock   ReportKind = "stock"
	KindOrder   ReportKind = "order"
	KindFinance ReportKind = "finance"
)

// ProductKey is the normalized product identifier records are grouped by.
type ProductKey string

// UnknownProductKey is used when no article-like field is present.
const UnknownProductKey ProductKey = "unknown"

// productKeyFields are probed in order; the first non-empty value wins.
// sa_name is the finance-report spelling of the supplier article.
var productKeyFields = []string{"supplierArticle", "sa", "vendorCode", "article", "sa_name"}

// RecordClass is the sale/order/return classification of a single record.
type RecordClass string

const (
	ClassNone   RecordClass = ""
	ClassSale   RecordClass = "sale"
	ClassOrder  RecordClass = "order"
	ClassReturn RecordClass = "return"
)

// NormalizedFields are the canonical values extracted from one raw record.
// Absent numeric fields are zero.
type NormalizedFields struct {
	Kind    ReportKind
	Class   RecordClass
	Date    time.Time
	HasDate bool

	Brand   string
	Subject string
	NmID    string

	Revenue   float64
	Payout    float64
	HasPayout bool
	Retail    float64
	Quantity  float64

	Commission  float64
	Logistics   float64
	Storage     float64
	Acceptance  float64
	Penalty     float64
	Bonus       float64
	Advertising float64

	StockQuantity   float64
	InWayToClient   float64
	InWayFromClient float64
}

// NormalizedRecord pairs a product key with its normalized fields.
type NormalizedRecord struct {
	Key    ProductKey
	Fields NormalizedFields
}

// fieldRules lists candidate field names per concept for one report kind.
// Priority lists take the first present value; component lists are summed.
type fieldRules struct {
	revenue []string // priority
	payout  []string // priority

	// payout is net of commission; when set and a payout is reported,
	// revenue is payout plus commission so profit deducts commission once
	grossUpPayout bool
	retail  []string // priority
	// quantity falls back to one unit per line when the kind reports line items
	quantity    []string
	unitPerLine bool

	commission  []string // components
	logistics   []string // components
	storage     []string // components
	acceptance  []string // components
	penalty     []string // components
	bonus       []string // components
	advertising []string // components

	stock           []string
	inWayToClient   []string
	inWayFromClient []string

	date    []string
	brand   []string
	subject []string
	nmID    []string
}

var normalizationRules = map[ReportKind]fieldRules{
	KindSale: {
		revenue:     []string{"forPay", "finishedPrice", "priceWithDisc", "totalPrice"},
		payout:      []string{"forPay"},
		retail:      []string{"finishedPrice", "priceWithDisc", "totalPrice"},
		quantity:    []string{"quantity"},
		unitPerLine: true,
		date:        []string{"date", "lastChangeDate"},
		brand:       []string{"brand"},
		subject:     []string{"subject", "category"},
		nmID:        []string{"nmId", "nmID"},
	},
	KindOrder: {
		revenue:     []string{"finishedPrice", "priceWithDisc", "totalPrice"},
		retail:      []string{"finishedPrice", "priceWithDisc", "totalPrice"},
		quantity:    []string{"quantity"},
		unitPerLine: true,
		date:        []string{"date", "lastChangeDate"},
		brand:       []string{"brand"},
		subject:     []string{"subject", "category"},
		nmID:        []string{"nmId", "nmID"},
	},
	KindStock: {
		stock:           []string{"quantity"},
		inWayToClient:   []string{"inWayToClient"},
		inWayFromClient: []string{"inWayFromClient"},
		retail:          []string{"Price", "price"},
		date:            []string{"lastChangeDate"},
		brand:           []string{"brand"},
		subject:         []string{"subject", "category"},
		nmID:            []string{"nmId", "nmID"},
	},
	KindFinance: {
		revenue:       []string{"retail_amount"},
		payout:        []string{"ppvz_for_pay"},
		grossUpPayout: true,
		retail:        []string{"retail_amount"},
		quantity:      []string{"quantity"},
		commission:    []string{"ppvz_vw", "ppvz_vw_nds"},
		logistics:     []string{"delivery_rub"},
		storage:       []string{"storage_fee", "return_storage_fee"},
		acceptance:    []string{"acceptance"},
		penalty:       []string{"penalty"},
		bonus:         []string{"additional_payment"},
		advertising:   []string{"deduction"},
		date:          []string{"sale_dt", "rr_dt", "order_dt", "date"},
		brand:         []string{"brand_name", "brand"},
		subject:       []string{"subject_name", "subject"},
		nmID:          []string{"nm_id", "nmId"},
	},
}

// ProductKeyOf extracts the product key from a record. It never fails.
func ProductKeyOf(rec Record) ProductKey {
	if s := rec.String(productKeyFields...); s != "" {
		return ProductKey(s)
	}
	return UnknownProductKey
}

// Normalize extracts the product key and canonical fields from one raw record.
// Missing fields are read as zero; only a non key-value input is an error.
func Normalize(raw any, kind ReportKind) (ProductKey, NormalizedFields, error) {
	rules, ok := normalizationRules[kind]
	if !ok {
		return UnknownProductKey, NormalizedFields{}, configErrorf("kind", "unknown report kind %q", kind)
	}
	rec, ok := asRecord(raw)
	if !ok {
		return UnknownProductKey, NormalizedFields{}, ErrMalformedRecord
	}

	f := NormalizedFields{
		Kind:    kind,
		Brand:   rec.String(rules.brand...),
		Subject: rec.String(rules.subject...),
		NmID:    rec.String(rules.nmID...),

		Revenue: rec.Float(rules.revenue...),
		Retail:  rec.Float(rules.retail...),

		Commission:  rec.Sum(rules.commission...),
		Logistics:   rec.Sum(rules.logistics...),
		Storage:     rec.Sum(rules.storage...),
		Acceptance:  rec.Sum(rules.acceptance...),
		Penalty:     rec.Sum(rules.penalty...),
		Bonus:       rec.Sum(rules.bonus...),
		Advertising: rec.Sum(rules.advertising...),

		StockQuantity:   rec.Sum(rules.stock...),
		InWayToClient:   rec.Sum(rules.inWayToClient...),
		InWayFromClient: rec.Sum(rules.inWayFromClient...),
	}
	f.Payout, f.HasPayout = rec.Number(rules.payout...)
	if rules.grossUpPayout && f.HasPayout {
		f.Revenue = f.Payout + f.Commission
	}
	f.Date, f.HasDate = rec.Time(rules.date...)

	if q, ok := rec.Number(rules.quantity...); ok {
		f.Quantity = q
	} else if rules.unitPerLine {
		f.Quantity = 1
	}

	f.Class = classifyRecord(kind, rec)
	return ProductKeyOf(rec), f, nil
}

// classifyRecord decides whether a record is a sale, an order or a return.
func classifyRecord(kind ReportKind, rec Record) RecordClass {
	switch kind {
	case KindSale:
		saleID := rec.String("saleID", "saleId")
		switch {
		case strings.HasPrefix(saleID, "R"):
			return ClassReturn
		case saleID != "":
			return ClassSale
		case rec.String("odid", "srid", "gNumber") != "":
			return ClassOrder
		}
	case KindOrder:
		if rec.Bool("isCancel") {
			return ClassReturn
		}
		return ClassOrder
	case KindFinance:
		doc := strings.ToLower(rec.String("doc_type_name", "supplier_oper_name"))
		switch {
		case strings.Contains(doc, "возврат") || strings.Contains(doc, "return"):
			return ClassReturn
		case strings.Contains(doc, "продажа") || strings.Contains(doc, "sale"):
			return ClassSale
		case rec.String("saleID") != "":
			return ClassSale
		case rec.String("odid") != "":
			return ClassOrder
		}
	}
	return ClassNone
}

// BatchResult is the outcome of normalizing one report.
type BatchResult struct {
	Records   []NormalizedRecord
	Malformed int
}

// NormalizeBatch normalizes every item of a report, counting and skipping
// malformed ones. A nil report yields an empty result.
func NormalizeBatch(report RawReport, kind ReportKind) (BatchResult, error) {
	if _, ok := normalizationRules[kind]; !ok {
		return BatchResult{}, configErrorf("kind", "unknown report kind %q", kind)
	}

	result := BatchResult{Records: make([]NormalizedRecord, 0, len(report))}
	for _, raw := range report {
		key, fields, err := Normalize(raw, kind)
		if err != nil {
			result.Malformed++
			continue
		}
		result.Records = append(result.Records, NormalizedRecord{Key: key, Fields: fields})
	}
	return result, nil
}
