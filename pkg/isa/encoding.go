package isa

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	OperandBits        = 24
	OperandMask uint32 = 1<<OperandBits - 1
	MaxOperand  uint32 = OperandMask

	// WordSize is the width of one encoded word in bytes.
	WordSize = 4
)

var (
	ErrOperandRange  = errors.New("operand does not fit in 24 bits")
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrTruncatedWord = errors.New("byte length is not a multiple of the word size")
)

// Encode packs an opcode tag and operand into one word.
// An operand wider than 24 bits is rejected, never truncated.
func Encode(op Opcode, operand uint32) (uint32, error) {
	if !op.Valid() {
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, byte(op))
	}
	if operand > MaxOperand {
		return 0, fmt.Errorf("%w: %s %d (max %d)", ErrOperandRange, op, operand, MaxOperand)
	}
	if !op.HasOperand() && operand != 0 {
		return 0, fmt.Errorf("%s takes no operand, got %d", op, operand)
	}
	return uint32(op)<<OperandBits | operand, nil
}

// MustEncode is Encode for tables known to be valid. It panics on error.
func MustEncode(op Opcode, operand uint32) uint32 {
	w, err := Encode(op, operand)
	if err != nil {
		panic(err)
	}
	return w
}

// EncodeData stores a raw data reservation value. Data words carry no tag.
func EncodeData(v int32) uint32 {
	return uint32(v)
}

// Decode splits a word into its opcode tag and 24-bit operand.
func Decode(word uint32) (Opcode, uint32) {
	return Opcode(word >> OperandBits), word & OperandMask
}

// WordsToBytes lays words out big-endian, most significant byte first.
func WordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*WordSize)
	for i, w := range words {
		binary.BigEndian.PutUint32(out[i*WordSize:], w)
	}
	return out
}

// BytesToWords is the inverse of WordsToBytes.
func BytesToWords(b []byte) ([]uint32, error) {
	if len(b)%WordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedWord, len(b))
	}
	words := make([]uint32, len(b)/WordSize)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(b[i*WordSize:])
	}
	return words, nil
}
