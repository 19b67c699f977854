package analytics

import "math"

// DefaultStorageRatePerLiter is the storage charge per liter of volume.
const DefaultStorageRatePerLiter = 5.0

// LogisticsRates is the seller/region-specific logistics tariff.
type LogisticsRates struct {
	FirstLiterRate       float64 `json:"firstLiterRate" mapstructure:"first_liter_rate"`
	PerLiterRate         float64 `json:"perLiterRate" mapstructure:"per_liter_rate"`
	WarehouseCoefficient float64 `json:"warehouseCoefficient" mapstructure:"warehouse_coefficient"`
	LocalizationIndex    float64 `json:"localizationIndex" mapstructure:"localization_index"`
	StorageRatePerLiter  float64 `json:"storageRatePerLiter" mapstructure:"storage_rate_per_liter"`
}

// Validate rejects negative tariffs.
func (r LogisticsRates) Validate() error {
	checks := []struct {
		field string
		v     float64
	}{
		{"firstLiterRate", r.FirstLiterRate},
		{"perLiterRate", r.PerLiterRate},
		{"warehouseCoefficient", r.WarehouseCoefficient},
		{"localizationIndex", r.LocalizationIndex},
		{"storageRatePerLiter", r.StorageRatePerLiter},
	}
	for _, c := range checks {
		if err := requireNonNegative(c.field, c.v); err != nil {
			return err
		}
	}
	return nil
}

// UnitEconomicsInputs is the cost basis and fee structure for one product.
// Dimensions are in centimeters, percentages in 0..100, TaxRate is a fraction.
type UnitEconomicsInputs struct {
	Key ProductKey `json:"key,omitempty"`

	CostPrice           float64 `json:"costPrice"`
	DeliveryToWarehouse float64 `json:"deliveryToWarehouse"`

	BasePrice               float64 `json:"basePrice"`
	DiscountPercent         float64 `json:"discountPercent"`
	CustomerDiscountPercent float64 `json:"customerDiscountPercent"`

	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`

	LogisticsRates
	BuyoutPercent     float64 `json:"buyoutPercent"`
	CommissionPercent float64 `json:"commissionPercent"`
	TaxRate           float64 `json:"taxRate"`
}

// Validate rejects negative amounts and out-of-range percentages before any step runs.
func (in UnitEconomicsInputs) Validate() error {
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"costPrice", in.CostPrice},
		{"deliveryToWarehouse", in.DeliveryToWarehouse},
		{"basePrice", in.BasePrice},
		{"height", in.Height},
		{"width", in.Width},
		{"length", in.Length},
	} {
		if err := requireNonNegative(c.field, c.v); err != nil {
			return err
		}
	}
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"discountPercent", in.DiscountPercent},
		{"customerDiscountPercent", in.CustomerDiscountPercent},
		{"buyoutPercent", in.BuyoutPercent},
		{"commissionPercent", in.CommissionPercent},
	} {
		if err := requirePercent(c.field, c.v); err != nil {
			return err
		}
	}
	if in.TaxRate < 0 || in.TaxRate >= 1 {
		return configErrorf("taxRate", "must be a fraction in [0, 1), got %v", in.TaxRate)
	}
	return in.LogisticsRates.Validate()
}

// UnitEconomicsRecord holds the inputs and every derived value of the chain.
type UnitEconomicsRecord struct {
	Inputs UnitEconomicsInputs `json:"inputs"`

	SellingPriceBeforeDiscount float64 `json:"sellingPriceBeforeDiscount"`
	DiscountAmount             float64 `json:"discountAmount"`
	PriceAfterDiscount         float64 `json:"priceAfterDiscount"`
	FinalPrice                 float64 `json:"finalPrice"`
	VolumeLiters               float64 `json:"volumeLiters"`
	LogisticsBase              float64 `json:"logisticsBase"`
	LogisticsAdjustedForBuyout float64 `json:"logisticsAdjustedForBuyout"`
	FinalLogistics             float64 `json:"finalLogistics"`
	StorageCost                float64 `json:"storageCost"`
	CommissionAmount           float64 `json:"commissionAmount"`
	TotalMarketplaceFees       float64 `json:"totalMarketplaceFees"`
	AmountPayableToSeller      float64 `json:"amountPayableToSeller"`
	TaxAmount                  float64 `json:"taxAmount"`
	RevenueAfterTax            float64 `json:"revenueAfterTax"`
	FinalGrossProfit           float64 `json:"finalGrossProfit"`
	MarkupPercent              float64 `json:"markupPercent"`
	MarginPercent              float64 `json:"marginPercent"`
	GrossProfitabilityPercent  float64 `json:"grossProfitabilityPercent"`
	ROIPercent                 float64 `json:"roiPercent"`
	BreakEvenPrice             float64 `json:"breakEvenPrice"`
}

// ComputeUnitEconomics evaluates the per-unit profitability chain. Each step
// reads only inputs and earlier steps; nothing is rounded until Rounded.
func ComputeUnitEconomics(in UnitEconomicsInputs) (UnitEconomicsRecord, error) {
	if err := in.Validate(); err != nil {
		return UnitEconomicsRecord{}, err
	}

	r := UnitEconomicsRecord{Inputs: in}

	// 1-4. Price after seller and customer discounts
	r.SellingPriceBeforeDiscount = in.BasePrice
	r.DiscountAmount = in.BasePrice * in.DiscountPercent / 100
	r.PriceAfterDiscount = in.BasePrice - r.DiscountAmount
	r.FinalPrice = r.PriceAfterDiscount * (1 - in.CustomerDiscountPercent/100)

	// 5-8. Volume-tiered logistics
	r.VolumeLiters = in.Height * in.Width * in.Length / 1000
	r.LogisticsBase = (math.Max(r.VolumeLiters-1, 0)*in.PerLiterRate + in.FirstLiterRate) * in.WarehouseCoefficient
	r.LogisticsAdjustedForBuyout = r.LogisticsBase * (in.BuyoutPercent / 100)
	r.FinalLogistics = r.LogisticsAdjustedForBuyout * in.LocalizationIndex

	// 9-11. Marketplace fees
	r.StorageCost = r.VolumeLiters * in.StorageRatePerLiter
	r.CommissionAmount = r.FinalPrice * in.CommissionPercent / 100
	r.TotalMarketplaceFees = r.CommissionAmount + r.FinalLogistics + r.StorageCost

	// 12-15. Payout, tax and profit
	r.AmountPayableToSeller = r.FinalPrice - r.TotalMarketplaceFees
	r.TaxAmount = r.AmountPayableToSeller * in.TaxRate
	r.RevenueAfterTax = r.AmountPayableToSeller - r.TaxAmount
	costBasis := in.CostPrice + in.DeliveryToWarehouse
	r.FinalGrossProfit = r.RevenueAfterTax - costBasis

	// 16-19. Ratios, zero when the base is zero
	r.MarkupPercent = safeDiv(r.FinalGrossProfit, r.FinalPrice) * 100
	r.MarginPercent = safeDiv(r.FinalGrossProfit, r.RevenueAfterTax) * 100
	r.GrossProfitabilityPercent = safeDiv(r.FinalGrossProfit, costBasis) * 100
	r.ROIPercent = safeDiv(r.RevenueAfterTax-costBasis, costBasis) * 100

	// 20. Break-even price; undefined when fees take the whole price
	denominator := 1 - (in.CommissionPercent+in.TaxRate*100)/100
	if denominator > 0 {
		r.BreakEvenPrice = safeDiv(r.FinalLogistics+in.CostPrice, denominator)
	}

	return r, nil
}

// Rounded returns a copy with every derived value rounded to two decimals.
func (r UnitEconomicsRecord) Rounded() UnitEconomicsRecord {
	out := r
	for _, v := range []*float64{
		&out.SellingPriceBeforeDiscount,
		&out.DiscountAmount,
		&out.PriceAfterDiscount,
		&out.FinalPrice,
		&out.VolumeLiters,
		&out.LogisticsBase,
		&out.LogisticsAdjustedForBuyout,
		&out.FinalLogistics,
		&out.StorageCost,
		&out.CommissionAmount,
		&out.TotalMarketplaceFees,
		&out.AmountPayableToSeller,
		&out.TaxAmount,
		&out.RevenueAfterTax,
		&out.FinalGrossProfit,
		&out.MarkupPercent,
		&out.MarginPercent,
		&out.GrossProfitabilityPercent,
		&out.ROIPercent,
		&out.BreakEvenPrice,
	} {
		*v = Round2(*v)
	}
	return out
}
