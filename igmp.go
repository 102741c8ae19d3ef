package netx

import (
	"net/netip"

	"log/slog"

	"github.com/tangshiaw/netx/header"
)

// JoinGroup adds group to the membership list and announces the membership
// with an unsolicited report sent to the group itself.
func (s *Stack) JoinGroup(group netip.Addr) error {
	if !group.Is4() || !group.IsMulticast() {
		return ErrIPAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g == group {
			// Already a member; re-announce.
			return s.sendGroupReport(group, true)
		}
	}
	if len(s.groups) >= s.maxGroups {
		return ErrNoMoreEntries
	}
	s.groups = append(s.groups, group)
	return s.sendGroupReport(group, true)
}

// LeaveGroup removes group from the membership list. Under version 2
// operation a leave report is sent to the all-routers group; a version 1
// router infers departure from silence, so nothing is sent.
func (s *Stack) LeaveGroup(group netip.Addr) error {
	if !group.Is4() || !group.IsMulticast() {
		return ErrIPAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.groups {
		if g == group {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			if s.igmpV1Router {
				return nil
			}
			return s.sendGroupReport(group, false)
		}
	}
	return ErrEntryNotFound
}

// Groups returns a copy of the current membership list.
func (s *Stack) Groups() []netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]netip.Addr, len(s.groups))
	copy(out, s.groups)
	return out
}

// SetIGMPv1Router switches report formats for compatibility with a version 1
// querier on the link, as learned from received queries.
func (s *Stack) SetIGMPv1Router(v1 bool) {
	s.mu.Lock()
	s.igmpV1Router = v1
	s.mu.Unlock()
}

// ReportsSent returns the number of membership reports sent. Leave reports
// are not counted.
func (s *Stack) ReportsSent() uint32 {
	return s.reportsSent.Load()
}

// sendGroupReport composes and transmits a membership or leave report for
// group. Caller holds s.mu.
func (s *Stack) sendGroupReport(group netip.Addr, joining bool) error {
	b, err := s.pool.Get(0)
	if err != nil {
		return err
	}
	hdr := header.IGMPHeader{
		Type:         header.IGMPTypeReportV2,
		GroupAddress: group.As4(),
	}
	dst := group
	switch {
	case s.igmpV1Router:
		hdr.Type = header.IGMPTypeReportV1
	case !joining:
		hdr.Type = header.IGMPTypeLeaveGroup
		dst = AllRoutersAddr
	}
	hdr.Checksum = hdr.CalculateChecksum()

	buf, err := b.Prepend(header.SizeIGMPHeader)
	if err != nil {
		b.Free()
		return err
	}
	hdr.Put(buf)
	if joining {
		s.reportsSent.Add(1)
	}
	s.trace("tx:igmp",
		slog.String("group", group.String()),
		slog.Bool("join", joining),
	)
	s.sender.Send(b, dst, tosNormal, ttlIGMP, header.IPProtoIGMP, false)
	return nil
}
