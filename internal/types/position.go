package types

// ApplyBuy commits capital to the position.
func (p *Position) ApplyBuy(price, amount float64) {
	p.QuantityHeld += amount
	p.NetInvested += price * amount
	p.InPosition = p.QuantityHeld > 0
}

// AverageCostBasis is the invested capital per unit held. Zero when flat.
func (p *Position) AverageCostBasis() float64 {
	if p.QuantityHeld <= 0 {
		return 0
	}
	return p.NetInvested / p.QuantityHeld
}

// ApplySell realizes profit against the average cost basis and releases
// the proportional share of invested capital. Returns the realized profit.
// Full-position sells leave the position flat with zero net invested.
func (p *Position) ApplySell(price, amount float64) float64 {
	if amount > p.QuantityHeld {
		amount = p.QuantityHeld
	}
	costBasis := p.AverageCostBasis()
	profit := (price - costBasis) * amount

	p.QuantityHeld -= amount
	p.NetInvested -= costBasis * amount
	if p.QuantityHeld <= 0 {
		p.QuantityHeld = 0
		p.NetInvested = 0
	}
	p.InPosition = p.QuantityHeld > 0

	return profit
}
