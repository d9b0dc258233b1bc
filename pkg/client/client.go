package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"modl/pkg/common"
	"modl/pkg/protocol"
)

var ErrUnknownResponse = errors.New("unknown response")

type Client struct {
	conn net.Conn
	addr string
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		addr: addr,
	}, nil
}

// Group asks the server for the groups of a categorical variable.
func (c *Client) Group(name string, counts []int) (common.Partition, error) {
	return c.search(protocol.OpGroup, name, protocol.EncodeCounts(counts))
}

func (c *Client) Discretize(name string, atoms []common.Atom) (common.Partition, error) {
	return c.search(protocol.OpDiscretize, name, protocol.EncodeAtoms(atoms))
}

func (c *Client) Histogram(name string, values []float64) (common.Partition, error) {
	return c.search(protocol.OpHistogram, name, protocol.EncodeValues(values))
}

func (c *Client) Stats() (map[string]interface{}, error) {
	data, err := c.call(protocol.OpStats, nil, nil)
	if err != nil {
		return nil, err
	}
	var stats map[string]interface{}
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) search(op byte, name string, payload []byte) (common.Partition, error) {
	data, err := c.call(op, []byte(name), payload)
	if err != nil {
		return common.Partition{}, err
	}
	return protocol.DecodePartition(data)
}

func (c *Client) call(op byte, key, val []byte) ([]byte, error) {
	if err := protocol.Encode(c.conn, op, key, val); err != nil {
		return c.reconnectAndRetry(op, key, val)
	}
	pkg, err := protocol.Decode(c.conn)
	if err != nil {
		return c.reconnectAndRetry(op, key, val)
	}
	return response(pkg)
}

func (c *Client) reconnectAndRetry(op byte, key, val []byte) ([]byte, error) {
	c.conn.Close()
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	// Re-send
	if err := protocol.Encode(c.conn, op, key, val); err != nil {
		return nil, err
	}
	// Re-read
	pkg, err := protocol.Decode(c.conn)
	if err != nil {
		return nil, err
	}
	return response(pkg)
}

func response(pkg *protocol.Packet) ([]byte, error) {
	switch pkg.Op {
	case protocol.RespVal:
		return pkg.Value, nil
	case protocol.RespErr:
		return nil, fmt.Errorf("server: %s", pkg.Value)
	default:
		return nil, ErrUnknownResponse
	}
}
