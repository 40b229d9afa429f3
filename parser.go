package edusiap

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

type parser struct {
	// offset counts the bytes of every fully parsed command
	offset         int64
	currentCmdSize int64
	currentLine    int
}

// next parses one command. It returns io.EOF at a clean end of input and
// io.ErrUnexpectedEOF when the input stops in the middle of a command.
func (p *parser) next(r *bufio.Reader) (*journalCmd, error) {
	p.currentCmdSize = 0

	if _, err := r.Peek(1); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, errors.Wrap(ErrSourceFileReadFailed, err.Error())
	}

	segments, err := p.resolveRespArray(r)
	if err != nil {
		return nil, err
	}

	code, err := p.resolveRespCommandCode(r)
	if err != nil {
		return nil, err
	}

	var cmd *journalCmd
	switch code {
	case baseCode, commitCode:
		cmd, err = p.parseChecksumCommand(r, code, segments)
	case setCode:
		cmd, err = p.parseSetCommand(r, segments)
	case delCode:
		cmd, err = p.parseDelCommand(r, segments)
	case clearCode:
		cmd, err = p.parseClearCommand(r, segments)
	}

	if err != nil {
		return nil, err
	}

	p.offset += p.currentCmdSize
	return cmd, nil
}

func (p *parser) parseChecksumCommand(r *bufio.Reader, code commandCode, segments int) (*journalCmd, error) {
	if err := p.expectSegments(segments, 2); err != nil {
		return nil, err
	}

	sum, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	return &journalCmd{code: code, checksum: string(sum)}, nil
}

// parseSetCommand parses `set <collection> <key> <record>`
func (p *parser) parseSetCommand(r *bufio.Reader, segments int) (*journalCmd, error) {
	if err := p.expectSegments(segments, 4); err != nil {
		return nil, err
	}

	coll, key, err := p.resolveCollectionAndKey(r)
	if err != nil {
		return nil, err
	}

	value, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	return &journalCmd{code: setCode, coll: coll, key: key, value: value}, nil
}

// parseDelCommand parses `del <collection> <key>`
func (p *parser) parseDelCommand(r *bufio.Reader, segments int) (*journalCmd, error) {
	if err := p.expectSegments(segments, 3); err != nil {
		return nil, err
	}

	coll, key, err := p.resolveCollectionAndKey(r)
	if err != nil {
		return nil, err
	}

	return &journalCmd{code: delCode, coll: coll, key: key}, nil
}

// parseClearCommand parses `clear <collection>`
func (p *parser) parseClearCommand(r *bufio.Reader, segments int) (*journalCmd, error) {
	if err := p.expectSegments(segments, 2); err != nil {
		return nil, err
	}

	coll, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	return &journalCmd{code: clearCode, coll: string(coll)}, nil
}

func (p *parser) expectSegments(got, want int) error {
	if got != want {
		return errors.Wrapf(ErrCommandInvalid, "line #%d - expected %d segments, got %d", p.currentLine, want, got)
	}
	return nil
}

func (p *parser) resolveCollectionAndKey(r *bufio.Reader) (string, Key, error) {
	coll, err := p.resolveRespBlob(r)
	if err != nil {
		return "", Key{}, err
	}

	raw, err := p.resolveRespBlob(r)
	if err != nil {
		return "", Key{}, err
	}

	k, err := keyFromBytes(raw)
	if err != nil {
		return "", Key{}, errors.Wrapf(ErrCommandInvalid, "line #%d - %v", p.currentLine, err)
	}

	return string(coll), k, nil
}

func (p *parser) readLine(r *bufio.Reader) ([]byte, error) {
	p.currentLine++
	line, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, errors.Wrapf(ErrSourceFileReadFailed, "line #%d: %v", p.currentLine, err)
	}

	if len(line) < 3 || line[len(line)-2] != '\r' {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - %q is not terminated by CRLF", p.currentLine, line)
	}

	p.currentCmdSize += int64(len(line))
	return line, nil
}

func (p *parser) resolveRespArray(r *bufio.Reader) (int, error) {
	line, err := p.readLine(r)
	if err != nil {
		return 0, err
	}

	if line[0] != '*' {
		return 0, errors.Wrapf(ErrCommandInvalid, "line #%d - %q should start with *", p.currentLine, line)
	}

	n, err := strconv.Atoi(string(line[1 : len(line)-2]))
	if err != nil || n < 1 {
		return 0, errors.Wrapf(ErrCommandInvalid, "could not parse command size at line #%d", p.currentLine)
	}

	return n, nil
}

func (p *parser) resolveRespCommandCode(r *bufio.Reader) (commandCode, error) {
	line, err := p.readLine(r)
	if err != nil {
		return invalidCode, err
	}

	if line[0] != '+' {
		return invalidCode, errors.Wrapf(ErrCommandInvalid, "at line #%d, any command should start with + symbol", p.currentLine)
	}

	switch string(line[1 : len(line)-2]) {
	case baseCommand:
		return baseCode, nil
	case setCommand:
		return setCode, nil
	case delCommand:
		return delCode, nil
	case clearCommand:
		return clearCode, nil
	case commitCommand:
		return commitCode, nil
	}

	return invalidCode, errors.Wrapf(ErrCommandInvalid, "at line #%d command [%s] is unknown", p.currentLine, line)
}

// resolveRespBlob reads a length prefixed blob
func (p *parser) resolveRespBlob(r *bufio.Reader) ([]byte, error) {
	line, err := p.readLine(r)
	if err != nil {
		return nil, err
	}

	if line[0] != '$' {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - %q is not a blob", p.currentLine, line)
	}

	blobLen, err := strconv.Atoi(string(line[1 : len(line)-2]))
	if err != nil || blobLen < 0 {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - invalid blob length", p.currentLine)
	}

	blob := make([]byte, blobLen+2)
	n, err := io.ReadFull(r, blob)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, errors.Wrap(ErrSourceFileReadFailed, err.Error())
	}

	p.currentCmdSize += int64(n)

	if blob[blobLen] != '\r' || blob[blobLen+1] != '\n' {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - blob is longer than %d bytes", p.currentLine, blobLen)
	}

	return blob[:blobLen], nil
}

// keyFromBytes decodes a key written by Key.MarshalJSON.
func keyFromBytes(raw []byte) (Key, error) {
	res := gjson.ParseBytes(raw)
	switch res.Type {
	case gjson.String:
		return StringKey(res.Str), nil
	case gjson.Number:
		return KeyOf(json.Number(res.Raw))
	}

	return Key{}, errors.Wrapf(ErrInvalidKey, "%s is not a key", raw)
}
