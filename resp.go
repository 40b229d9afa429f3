package edusiap

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

const (
	baseCommand   = "base"
	setCommand    = "set"
	delCommand    = "del"
	clearCommand  = "clear"
	commitCommand = "commit"
)

type commandCode int8

const (
	invalidCode commandCode = iota
	baseCode
	setCode
	delCode
	clearCode
	commitCode
)

// journalCmd is one line of work in the journal. Checksum is only set on
// base (the database file it extends) and commit (the batch it seals).
type journalCmd struct {
	code     commandCode
	coll     string
	key      Key
	value    []byte
	checksum string
}

type respSerializer struct {
	buf bytes.Buffer
}

func (rs *respSerializer) reset() {
	rs.buf.Reset()
}

func (rs *respSerializer) serialize(cmd *journalCmd) error {
	switch cmd.code {
	case baseCode:
		writeRespArray(2, &rs.buf)
		writeRespSimpleString(baseCommand, &rs.buf)
		writeRespBlob([]byte(cmd.checksum), &rs.buf)
	case setCode:
		key, err := cmd.key.MarshalJSON()
		if err != nil {
			return errors.Wrapf(err, "could not serialize key %s", cmd.key.String())
		}

		writeRespArray(4, &rs.buf)
		writeRespSimpleString(setCommand, &rs.buf)
		writeRespBlob([]byte(cmd.coll), &rs.buf)
		writeRespBlob(key, &rs.buf)
		writeRespBlob(cmd.value, &rs.buf)
	case delCode:
		key, err := cmd.key.MarshalJSON()
		if err != nil {
			return errors.Wrapf(err, "could not serialize key %s", cmd.key.String())
		}

		writeRespArray(3, &rs.buf)
		writeRespSimpleString(delCommand, &rs.buf)
		writeRespBlob([]byte(cmd.coll), &rs.buf)
		writeRespBlob(key, &rs.buf)
	case clearCode:
		writeRespArray(2, &rs.buf)
		writeRespSimpleString(clearCommand, &rs.buf)
		writeRespBlob([]byte(cmd.coll), &rs.buf)
	case commitCode:
		writeRespArray(2, &rs.buf)
		writeRespSimpleString(commitCommand, &rs.buf)
		writeRespBlob([]byte(cmd.checksum), &rs.buf)
	default:
		return errors.Wrapf(ErrCommandInvalid, "unknown command code %d", cmd.code)
	}

	return nil
}

// serializeBatch writes cmds followed by a commit line sealing them.
func (rs *respSerializer) serializeBatch(cmds []*journalCmd) error {
	sum, err := batchChecksum(cmds)
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		if err := rs.serialize(cmd); err != nil {
			return err
		}
	}

	return rs.serialize(&journalCmd{code: commitCode, checksum: sum})
}

// batchChecksum hashes the serialized form of cmds, so replay can verify a
// batch by serializing what it parsed.
func batchChecksum(cmds []*journalCmd) (string, error) {
	var rs respSerializer
	for _, cmd := range cmds {
		if err := rs.serialize(cmd); err != nil {
			return "", err
		}
	}

	return checksum(rs.buf.Bytes()), nil
}

func writeRespArray(segments int, buf *bytes.Buffer) int {
	buf.WriteRune('*')
	s := strconv.FormatInt(int64(segments), 10)
	buf.WriteString(s)
	buf.WriteRune('\r')
	buf.WriteRune('\n')

	return 3 + len(s)
}

func writeRespSimpleString(s string, buf *bytes.Buffer) int {
	buf.WriteRune('+')
	buf.WriteString(s)
	buf.WriteRune('\r')
	buf.WriteRune('\n')
	return 3 + len(s)
}

func writeRespBlob(blob []byte, buf *bytes.Buffer) int {
	buf.WriteRune('$')
	l := strconv.FormatInt(int64(len(blob)), 10)
	buf.WriteString(l)
	buf.WriteRune('\r')
	buf.WriteRune('\n')
	buf.Write(blob)
	buf.WriteRune('\r')
	buf.WriteRune('\n')

	return 1 + len(l) + 2 + len(blob) + 2
}
