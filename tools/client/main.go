// tools/client is a small interactive smoke-test client for
// cmd/server's TCP listener. It replaces the teacher's newline-text
// REPL with one that speaks the length-prefixed frame codec and JSON
// bodies the dispatcher actually expects.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/vantrix/realmcore/internal/codec"
)

const (
	protoAuth    = 1<<8 | 1
	protoPing    = 2<<8 | 1
	protoEcho    = 2<<8 | 2
	protoProfile = 3<<8 | 1
	protoGrantXP = 3<<8 | 2
)

func main() {
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 7777, "server tcp port")
	flag.Parse()

	conn, err := net.Dial("tcp", net.JoinHostPort(*host, strconv.Itoa(*port)))
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	fmt.Printf("connected to %s:%d\n", *host, *port)
	fmt.Println("commands: auth <account> <token> | ping | echo <text> | profile | grant <amount> | quit")

	c := codec.New(codec.DefaultMaxFrame)
	reader := codec.NewReader(conn, c)
	var seq atomic.Uint32

	go func() {
		for {
			msg, err := reader.Next()
			if err != nil {
				fmt.Printf("connection closed: %v\n", err)
				os.Exit(0)
			}
			var env map[string]any
			if jsonErr := json.Unmarshal(msg.Body, &env); jsonErr != nil {
				fmt.Printf("<< seq=%d raw=%q\n", msg.SeqID, msg.Body)
				continue
			}
			fmt.Printf("<< seq=%d %v\n", msg.SeqID, env)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" {
			break
		}

		protocolID, methodID, body, err := buildRequest(fields)
		if err != nil {
			fmt.Println(err)
			continue
		}
		frame := c.Encode(codec.Message{
			SeqID:      seq.Add(1),
			ProtocolID: protocolID,
			MethodID:   methodID,
			Body:       body,
		})
		if _, err := conn.Write(frame); err != nil {
			fmt.Printf("send failed: %v\n", err)
			break
		}
	}
	fmt.Println("goodbye")
}

func buildRequest(fields []string) (protocolID, methodID uint16, body []byte, err error) {
	split := func(key uint32) (uint16, uint16) {
		return uint16(key >> 8), uint16(key & 0xff)
	}

	switch fields[0] {
	case "auth":
		if len(fields) != 3 {
			return 0, 0, nil, fmt.Errorf("usage: auth <account> <token>")
		}
		p, m := split(protoAuth)
		body, _ = json.Marshal(map[string]string{"account": fields[1], "token": fields[2]})
		return p, m, body, nil
	case "ping":
		p, m := split(protoPing)
		return p, m, nil, nil
	case "echo":
		p, m := split(protoEcho)
		return p, m, []byte(strings.Join(fields[1:], " ")), nil
	case "profile":
		p, m := split(protoProfile)
		return p, m, nil, nil
	case "grant":
		if len(fields) != 2 {
			return 0, 0, nil, fmt.Errorf("usage: grant <amount>")
		}
		p, m := split(protoGrantXP)
		body, _ = json.Marshal(map[string]string{"amount": fields[1]})
		return p, m, body, nil
	default:
		return 0, 0, nil, fmt.Errorf("unknown command %q", fields[0])
	}
}
