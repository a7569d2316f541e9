//
//  Copyright © Manetu Inc. All rights reserved.
//

package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcodeStringCoversAllDefined(t *testing.T) {
	for op := OpLoad; op <= OpHalt; op++ {
		assert.NotEqual(t, "UNKNOWN", op.String(), "opcode %d missing name", op)
	}
}

func TestUnknownOpcodeStringsAsUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", Opcode(9999).String())
}

func TestLoopModeString(t *testing.T) {
	assert.Equal(t, "Any", LoopAny.String())
	assert.Equal(t, "Every", LoopEvery.String())
	assert.Equal(t, "ForEach", LoopForEach.String())
}
