package network

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"

	"modl/pkg/core"
	"modl/pkg/protocol"
)

type TCPServer struct {
	engine *core.Engine
}

func NewTCPServer(engine *core.Engine) *TCPServer {
	return &TCPServer{engine: engine}
}

func (s *TCPServer) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("[TCP] Listening on %s (Binary Protocol)", addr)
	return s.Serve(listener)
}

// Serve accepts connections until the listener is closed.
func (s *TCPServer) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[TCP] Accept error: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		req, err := protocol.Decode(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("[TCP] Decode error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		name := string(req.Key)
		var res core.Result
		switch req.Op {
		case protocol.OpGroup:
			counts, derr := protocol.DecodeCounts(req.Value)
			if err = derr; err == nil {
				res, err = s.engine.Run(core.Request{Name: name, Op: core.OpGroup, Counts: counts})
			}

		case protocol.OpDiscretize:
			atoms, derr := protocol.DecodeAtoms(req.Value)
			if err = derr; err == nil {
				res, err = s.engine.Run(core.Request{Name: name, Op: core.OpDiscretize, Atoms: atoms})
			}

		case protocol.OpHistogram:
			values, derr := protocol.DecodeValues(req.Value)
			if err = derr; err == nil {
				res, err = s.engine.Run(core.Request{Name: name, Op: core.OpHistogram, Values: values})
			}

		case protocol.OpStats:
			data, _ := json.Marshal(s.engine.Stats())
			protocol.Encode(conn, protocol.RespVal, nil, data)
			continue

		default:
			protocol.Encode(conn, protocol.RespErr, nil, []byte("Unknown Op"))
			continue
		}

		if err != nil {
			protocol.Encode(conn, protocol.RespErr, nil, []byte(err.Error()))
			continue
		}
		p := res.Partition
		p.Cost = res.Cost
		protocol.Encode(conn, protocol.RespVal, req.Key, protocol.EncodePartition(p))
	}
}
