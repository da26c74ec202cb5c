package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrands_ScanOrder(t *testing.T) {
	c := Catalog{
		LuxuryBrands: []string{"gucci"},
		HypeBrands:   []string{"supreme"},
		CommonBrands: []string{"nike"},
	}
	assert.Equal(t, []string{"gucci", "supreme", "nike"}, c.Brands())
}

func TestContainsAny(t *testing.T) {
	k, ok := ContainsAny("vintage louis vuitton speedy 30", []string{"gucci", "Louis Vuitton"})
	assert.True(t, ok)
	assert.Equal(t, "louis vuitton", k)

	_, ok = ContainsAny("plain tee", []string{"gucci", " "})
	assert.False(t, ok)
}

func TestDefault_NikeIsNotTierRisk(t *testing.T) {
	c := Default()
	_, lux := ContainsAny("nike air jordan", c.LuxuryBrands)
	_, hype := ContainsAny("nike air jordan", c.HypeBrands)
	assert.False(t, lux)
	assert.False(t, hype)
	assert.True(t, c.StopwordSet()["size"])
}
