// Package server implements the compositor's side of the protocol. It
// accepts client connections, decodes their requests into calls on a
// compositor.Compositor and encodes the compositor's events back to
// them.
//
// Each connection is read on its own goroutine, but every message is
// handled on the event loop, so the compositor is only ever touched
// from the loop's goroutine.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	"deedles.dev/wlcomp/compositor"
	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/internal/set"
	"deedles.dev/wlcomp/loop"
	"deedles.dev/wlcomp/wire"
	"golang.org/x/exp/maps"
)

// global is an object advertised through the registry.
type global struct {
	iface   string
	version uint32
	bind    func(c *Client, id uint32) error
}

type Server struct {
	comp *compositor.Compositor
	loop *loop.Loop
	log  *slog.Logger

	done    chan struct{}
	close   sync.Once
	lis     *net.UnixListener
	clients set.Set[*Client]

	globals    map[uint32]global
	nextGlobal uint32
	outputs    map[*compositor.Output]uint32
	devices    map[*compositor.InputDevice]uint32
}

// New creates a server that serves comp. Everything is done on l, which
// must also be the loop that drives comp.
func New(comp *compositor.Compositor, l *loop.Loop, log *slog.Logger) *Server {
	server := Server{
		comp:       comp,
		loop:       l,
		log:        debug.Logger(log),
		done:       make(chan struct{}),
		clients:    make(set.Set[*Client]),
		globals:    make(map[uint32]global),
		nextGlobal: 1,
		outputs:    make(map[*compositor.Output]uint32),
		devices:    make(map[*compositor.InputDevice]uint32),
	}

	server.addGlobal(global{iface: compositorInterface.Name, version: 1, bind: bindCompositor})
	server.addGlobal(global{iface: shmInterface.Name, version: 1, bind: bindShm})

	l.OnFlush(server.flush)

	return &server
}

// ListenAndServe listens on the socket at path and serves clients that
// connect to it.
func (server *Server) ListenAndServe(path string) error {
	lis, err := wire.Listen(path)
	if err != nil {
		return fmt.Errorf("listen on %v: %w", path, err)
	}
	server.Serve(lis)
	return nil
}

// Serve accepts connections from lis in the background. The server
// takes ownership of lis.
func (server *Server) Serve(lis *net.UnixListener) {
	server.lis = lis
	server.log.Info("listening", "socket", lis.Addr())
	go server.listen(lis)
}

func (server *Server) listen(lis *net.UnixListener) {
	for {
		c, err := lis.AcceptUnix()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				server.loop.Post(func() error { return fmt.Errorf("accept: %w", err) })
			}
			return
		}

		select {
		case <-server.done:
			c.Close()
			return
		default:
			server.loop.Post(func() error { server.addClient(c); return nil })
		}
	}
}

func (server *Server) addClient(c *net.UnixConn) {
	select {
	case <-server.done:
		c.Close()
		return
	default:
	}

	client := newClient(server, wire.NewConn(c))
	server.clients.Add(client)
	server.log.Debug("client connected", "client", client)
}

func (server *Server) removeClient(client *Client) {
	server.clients.Remove(client)
	server.log.Debug("client disconnected", "client", client)
}

// Clients returns the number of connected clients.
func (server *Server) Clients() int {
	return len(server.clients)
}

// Close stops accepting connections and disconnects every client. It
// must be called from the loop.
func (server *Server) Close() error {
	server.close.Do(func() { close(server.done) })

	var err error
	if server.lis != nil {
		err = server.lis.Close()
	}
	for client := range server.clients {
		client.destroy()
	}
	return err
}

func (server *Server) flush() error {
	for client := range server.clients {
		err := client.conn.Flush()
		if err != nil {
			server.log.Debug("flush failed", "client", client, "err", err)
			client.destroy()
		}
	}
	return nil
}

func (server *Server) addGlobal(g global) uint32 {
	name := server.nextGlobal
	server.nextGlobal++

	server.globals[name] = g
	for client := range server.clients {
		client.announceGlobal(name, g)
	}
	return name
}

func (server *Server) removeGlobal(name uint32) {
	if _, ok := server.globals[name]; !ok {
		return
	}

	delete(server.globals, name)
	for client := range server.clients {
		client.removeGlobal(name)
	}
}

// sortedGlobals returns the names of the current globals in the order
// in which they were added.
func (server *Server) sortedGlobals() []uint32 {
	globals := maps.Clone(server.globals)
	names := make([]uint32, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AddOutput advertises out to clients.
func (server *Server) AddOutput(out *compositor.Output) {
	if _, ok := server.outputs[out]; ok {
		return
	}

	server.outputs[out] = server.addGlobal(global{
		iface:   outputInterface.Name,
		version: 1,
		bind: func(c *Client, id uint32) error {
			return bindOutput(c, id, out)
		},
	})
}

// RemoveOutput withdraws out from clients. Objects already bound to it
// stay valid but receive no further events.
func (server *Server) RemoveOutput(out *compositor.Output) {
	name, ok := server.outputs[out]
	if !ok {
		return
	}
	delete(server.outputs, out)
	server.removeGlobal(name)
}

// AddInputDevice advertises dev to clients.
func (server *Server) AddInputDevice(dev *compositor.InputDevice) {
	if _, ok := server.devices[dev]; ok {
		return
	}

	server.devices[dev] = server.addGlobal(global{
		iface:   inputDeviceInterface.Name,
		version: 1,
		bind: func(c *Client, id uint32) error {
			return bindInputDevice(c, id, dev)
		},
	})
}
