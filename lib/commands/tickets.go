// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/ticketd/lib/collection"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

func (s *Set) show(_ context.Context, request *wire.Request) wire.Response {
	tickets := s.collection.Tickets()
	if len(tickets) == 0 {
		return wire.OK(collection.ErrEmpty.Error(), wire.TicketsPayload(nil))
	}
	return wire.OK(fmt.Sprintf("%d tickets", len(tickets)), wire.TicketsPayload(tickets))
}

func (s *Set) add(_ context.Context, request *wire.Request) wire.Response {
	entry, err := request.Data.Ticket()
	if err != nil {
		return payloadFailure("a ticket", err)
	}
	created, err := s.collection.Create(entry, request.ResolvedUserID())
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d added", created.ID), wire.TicketPayload(created))
}

func (s *Set) update(_ context.Context, request *wire.Request) wire.Response {
	entry, err := request.Data.Ticket()
	if err != nil {
		return payloadFailure("a ticket", err)
	}
	updated, err := s.collection.UpdateOwned(entry, request.ResolvedUserID())
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d updated", entry.ID), wire.TicketPayload(updated))
}

func (s *Set) removeByID(_ context.Context, request *wire.Request) wire.Response {
	id, err := request.Data.Int()
	if err != nil {
		return payloadFailure("a ticket id", err)
	}
	if err := s.collection.RemoveOwned(id, request.ResolvedUserID()); err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d removed", id), nil)
}

func (s *Set) clear(_ context.Context, request *wire.Request) wire.Response {
	if request.Data != nil {
		scope, err := request.Data.Text()
		if err != nil || scope != ClearAllKeyword {
			return wire.Failf("clear accepts no payload or the string %q", ClearAllKeyword)
		}
		if !s.admins[request.Login] {
			return wire.Fail("clearing every ticket requires an administrator")
		}
		removed := s.collection.ClearAll()
		s.logger.Info("collection cleared by administrator",
			"user_id", request.ResolvedUserID(),
			"removed", removed,
		)
		return wire.OK(fmt.Sprintf("removed %d tickets", removed), wire.IntPayload(int64(removed)))
	}
	removed := s.collection.Clear(request.ResolvedUserID())
	return wire.OK(fmt.Sprintf("removed %d tickets", removed), wire.IntPayload(int64(removed)))
}

func (s *Set) removeFirst(_ context.Context, request *wire.Request) wire.Response {
	removed, err := s.collection.RemoveFirst(request.ResolvedUserID())
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d removed", removed.ID), nil)
}

func (s *Set) removeHead(_ context.Context, request *wire.Request) wire.Response {
	removed, err := s.collection.RemoveFirst(request.ResolvedUserID())
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d removed", removed.ID), wire.TicketPayload(removed))
}

func (s *Set) addIfMin(_ context.Context, request *wire.Request) wire.Response {
	entry, err := request.Data.Ticket()
	if err != nil {
		return payloadFailure("a ticket", err)
	}
	created, minimum, err := s.collection.AddIfMin(entry, request.ResolvedUserID())
	if errors.Is(err, collection.ErrNotMinimum) {
		return wire.FailWith(
			fmt.Sprintf("ticket not added: price %g is not below the current minimum %g", entry.Price, minimum),
			wire.FloatPayload(minimum),
		)
	}
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d added", created.ID), wire.TicketPayload(created))
}

func (s *Set) sumOfPrice(_ context.Context, request *wire.Request) wire.Response {
	sum, err := s.collection.SumOfPrice()
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("sum of prices: %g", sum), wire.FloatPayload(sum))
}

func (s *Set) minByDiscount(_ context.Context, request *wire.Request) wire.Response {
	found, err := s.collection.MinByDiscount()
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d", found.ID), wire.TicketPayload(found))
}

func (s *Set) maxByName(_ context.Context, request *wire.Request) wire.Response {
	found, err := s.collection.MaxByName()
	if err != nil {
		return s.failure(request, err)
	}
	return wire.OK(fmt.Sprintf("ticket %d", found.ID), wire.TicketPayload(found))
}
