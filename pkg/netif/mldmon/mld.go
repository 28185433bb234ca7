// Package mldmon snoops MLDv2 listener reports on an interface and turns
// the membership records into join/leave decisions.  It exists for
// platforms whose routing socket does not announce multicast membership
// changes, so the only way to learn them is to listen for the reports the
// kernel itself emits.
package mldmon

import (
	"encoding/binary"

	"github.com/ghjm/meshbridge/pkg/mesh"
	log "github.com/sirupsen/logrus"
)

const (
	icmp6TypeMLDv2Report = 143

	mldHeaderLen    = 8
	mldRecordHdrLen = 20
)

// MLDv2 record types, per RFC 3810.  A ChangeToExclude record with no
// sources means "receive everything", i.e. a join; ChangeToInclude with no
// sources means a leave.
const (
	recModeIsInclude   = 1
	recModeIsExclude   = 2
	recChangeToInclude = 3
	recChangeToExclude = 4
	recAllowNewSources = 5
	recBlockOldSources = 6
)

// Decision is one group membership change extracted from a report.
type Decision struct {
	Addr mesh.Addr
	Join bool
}

// decodeReport walks the membership records of an MLDv2 listener report
// and returns the join/leave decisions.  Each record is validated in full,
// including its source list, before a decision is emitted; a truncated
// record yields nothing.
func decodeReport(pkt []byte) []Decision {
	if len(pkt) < mldHeaderLen || pkt[0] != icmp6TypeMLDv2Report {
		return nil
	}
	numRecords := int(binary.BigEndian.Uint16(pkt[6:8]))
	var decisions []Decision
	rest := pkt[mldHeaderLen:]
	for i := 0; i < numRecords; i++ {
		if len(rest) < mldRecordHdrLen {
			break
		}
		recType := rest[0]
		numSources := int(binary.BigEndian.Uint16(rest[2:4]))
		recLen := mldRecordHdrLen + 16*numSources
		if len(rest) < recLen {
			break
		}
		switch recType {
		case recChangeToExclude:
			addr, _ := mesh.AddrFromSlice(rest[4:20])
			decisions = append(decisions, Decision{Addr: addr, Join: true})
		case recChangeToInclude:
			addr, _ := mesh.AddrFromSlice(rest[4:20])
			decisions = append(decisions, Decision{Addr: addr, Join: false})
		default:
			log.Debugf("mldmon: ignoring record type %d", recType)
		}
		rest = rest[recLen:]
	}
	return decisions
}

// filterReport keeps only reports originated by the host on the bridged
// interface itself.  Those are the kernel announcing the interface's own
// membership changes, which is what gets mirrored; reports from other
// nodes on the link are theirs, not ours.
func filterReport(pkt []byte, src mesh.Addr, localAddrs []mesh.Addr) []Decision {
	for _, a := range localAddrs {
		if a == src {
			return decodeReport(pkt)
		}
	}
	log.Debugf("mldmon: ignoring report from %s", src)
	return nil
}
