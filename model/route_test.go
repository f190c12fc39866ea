// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteZeroValue(t *testing.T) {
	var r Route
	assert.Empty(t, r.ID)
	assert.Nil(t, r.Source)
	assert.Nil(t, r.Sink)
	assert.False(t, r.Active)
	assert.False(t, r.ATD.Enabled)
}

func TestRouteFields(t *testing.T) {
	src := NewEndpoint(EndpointSource, nil)
	sink := NewEndpoint(EndpointSink, nil)
	r := &Route{
		ID:                    "route-1",
		Source:                src,
		Sink:                  sink,
		Active:                true,
		StaticConnectionLabel: 0x800C,
		ATD:                   ATDConfig{Enabled: true},
	}

	assert.Equal(t, "route-1", r.ID)
	assert.Same(t, src, r.Source)
	assert.Same(t, sink, r.Sink)
	assert.True(t, r.Active)
	assert.True(t, r.ATD.Enabled)
}
