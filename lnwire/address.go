package lnwire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Address type discriminators, as carried in the first byte of each entry of
// a node announcement's address list.
const (
	addrTypePadding byte = 0
	addrTypeIPv4    byte = 1
	addrTypeIPv6    byte = 2
	addrTypeTorV2   byte = 3
	addrTypeTorV3   byte = 4
)

const (
	torV2Len = 10
	torV3Len = 35
)

// OnionAddr represents a Tor onion-service address. It satisfies net.Addr so
// it can be stored alongside IPv4/IPv6 addresses in a node's address list.
type OnionAddr struct {
	OnionService string
	Port         int
}

// Network returns the address's network name.
func (o *OnionAddr) Network() string { return "onion" }

// String returns the "host:port" form of the onion address.
func (o *OnionAddr) String() string {
	return fmt.Sprintf("%s:%d", o.OnionService, o.Port)
}

// encodeAddresses serializes a list of addresses using the TLV-like,
// type-prefixed encoding described in §4.2.4: each entry begins with a
// one-byte type, followed by a type-specific fixed-length payload.
func encodeAddresses(addrs []net.Addr) ([]byte, error) {
	var raw []byte
	for _, addr := range addrs {
		switch a := addr.(type) {
		case *net.TCPAddr:
			if ip4 := a.IP.To4(); ip4 != nil {
				raw = append(raw, addrTypeIPv4)
				raw = append(raw, ip4...)
				raw = appendPort(raw, a.Port)
				continue
			}
			ip6 := a.IP.To16()
			if ip6 == nil {
				return nil, fmt.Errorf("invalid IP address: %v", a.IP)
			}
			raw = append(raw, addrTypeIPv6)
			raw = append(raw, ip6...)
			raw = appendPort(raw, a.Port)
		case *OnionAddr:
			switch len(a.OnionService) {
			case torV2Len + len(".onion"):
				raw = append(raw, addrTypeTorV2)
			case torV3Len + len(".onion"):
				raw = append(raw, addrTypeTorV3)
			default:
				return nil, fmt.Errorf("invalid onion service "+
					"length: %v", a.OnionService)
			}
			raw = append(raw, []byte(a.OnionService)...)
			raw = appendPort(raw, a.Port)
		default:
			return nil, fmt.Errorf("unknown address type: %T", addr)
		}
	}

	return raw, nil
}

func appendPort(raw []byte, port int) []byte {
	var p [2]byte
	binary.BigEndian.PutUint16(p[:], uint16(port))
	return append(raw, p[:]...)
}

// decodeAddresses parses the type-prefixed address list, per §4.2.4:
// padding-type entries are skipped, the first unrecognized type terminates
// parsing without error, and a malformed known-type entry aborts the whole
// message (returns an error).
func decodeAddresses(raw []byte) ([]net.Addr, error) {
	var addrs []net.Addr

	for len(raw) > 0 {
		addrType := raw[0]
		raw = raw[1:]

		switch addrType {
		case addrTypePadding:
			continue

		case addrTypeIPv4:
			if len(raw) < 4+2 {
				return nil, fmt.Errorf("malformed ipv4 address")
			}
			ip := net.IP(append([]byte(nil), raw[:4]...))
			port := int(binary.BigEndian.Uint16(raw[4:6]))
			raw = raw[6:]
			addrs = append(addrs, &net.TCPAddr{IP: ip, Port: port})

		case addrTypeIPv6:
			if len(raw) < 16+2 {
				return nil, fmt.Errorf("malformed ipv6 address")
			}
			ip := net.IP(append([]byte(nil), raw[:16]...))
			port := int(binary.BigEndian.Uint16(raw[16:18]))
			raw = raw[18:]
			addrs = append(addrs, &net.TCPAddr{IP: ip, Port: port})

		case addrTypeTorV2:
			if len(raw) < torV2Len+2 {
				return nil, fmt.Errorf("malformed tor v2 address")
			}
			service := string(raw[:torV2Len]) + ".onion"
			port := int(binary.BigEndian.Uint16(raw[torV2Len : torV2Len+2]))
			raw = raw[torV2Len+2:]
			addrs = append(addrs, &OnionAddr{OnionService: service, Port: port})

		case addrTypeTorV3:
			if len(raw) < torV3Len+2 {
				return nil, fmt.Errorf("malformed tor v3 address")
			}
			service := string(raw[:torV3Len]) + ".onion"
			port := int(binary.BigEndian.Uint16(raw[torV3Len : torV3Len+2]))
			raw = raw[torV3Len+2:]
			addrs = append(addrs, &OnionAddr{OnionService: service, Port: port})

		default:
			// First unknown type terminates parsing without error.
			return addrs, nil
		}
	}

	return addrs, nil
}
