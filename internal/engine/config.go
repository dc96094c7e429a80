package engine

// Config carries the scoring thresholds and the warmup minimum. The
// defaults are the product contract; overriding them in deployment
// config is possible but changes what the reason codes mean, so the
// tiers keep their documented names regardless.
type Config struct {
	ReviewDropHigh     float64 `mapstructure:"review_drop_high"`
	ReviewDropLow      float64 `mapstructure:"review_drop_low"`
	SentimentDropHigh  float64 `mapstructure:"sentiment_drop_high"`
	SentimentDropLow   float64 `mapstructure:"sentiment_drop_low"`
	EngagementDropHigh float64 `mapstructure:"engagement_drop_high"`
	EngagementDropLow  float64 `mapstructure:"engagement_drop_low"`

	RevenueDropHigh float64 `mapstructure:"revenue_drop_high"`
	RevenueDropLow  float64 `mapstructure:"revenue_drop_low"`
	RefundRiseHigh  float64 `mapstructure:"refund_rise_high"`
	RefundRiseLow   float64 `mapstructure:"refund_rise_low"`

	// DirectionBand is the flat zone around zero for trend direction.
	DirectionBand float64 `mapstructure:"direction_band"`

	// WarmupMinGrossCents is the minimum baseline gross activity below
	// which the warmup guard engages (default equivalent to $100).
	WarmupMinGrossCents int64 `mapstructure:"warmup_min_gross_cents"`
}

// DefaultConfig returns the documented threshold set.
func DefaultConfig() Config {
	return Config{
		ReviewDropHigh:      0.30,
		ReviewDropLow:       0.15,
		SentimentDropHigh:   0.50,
		SentimentDropLow:    0.25,
		EngagementDropHigh:  0.30,
		EngagementDropLow:   0.15,
		RevenueDropHigh:     0.25,
		RevenueDropLow:      0.10,
		RefundRiseHigh:      0.05,
		RefundRiseLow:       0.02,
		DirectionBand:       0.05,
		WarmupMinGrossCents: 10_000,
	}
}

// normalized fills unset fields from the defaults so a zero-value Config
// still scores with the documented contract.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ReviewDropHigh <= 0 {
		c.ReviewDropHigh = def.ReviewDropHigh
	}
	if c.ReviewDropLow <= 0 {
		c.ReviewDropLow = def.ReviewDropLow
	}
	if c.SentimentDropHigh <= 0 {
		c.SentimentDropHigh = def.SentimentDropHigh
	}
	if c.SentimentDropLow <= 0 {
		c.SentimentDropLow = def.SentimentDropLow
	}
	if c.EngagementDropHigh <= 0 {
		c.EngagementDropHigh = def.EngagementDropHigh
	}
	if c.EngagementDropLow <= 0 {
		c.EngagementDropLow = def.EngagementDropLow
	}
	if c.RevenueDropHigh <= 0 {
		c.RevenueDropHigh = def.RevenueDropHigh
	}
	if c.RevenueDropLow <= 0 {
		c.RevenueDropLow = def.RevenueDropLow
	}
	if c.RefundRiseHigh <= 0 {
		c.RefundRiseHigh = def.RefundRiseHigh
	}
	if c.RefundRiseLow <= 0 {
		c.RefundRiseLow = def.RefundRiseLow
	}
	if c.DirectionBand <= 0 {
		c.DirectionBand = def.DirectionBand
	}
	if c.WarmupMinGrossCents <= 0 {
		c.WarmupMinGrossCents = def.WarmupMinGrossCents
	}
	return c
}
