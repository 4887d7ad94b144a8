package com

import "github.com/rs/xid"

type Uid string

const NilUid Uid = ""

func NewUid() Uid { return Uid(xid.New().String()) }

func (u Uid) String() string { return string(u) }

func (u Uid) Short() string {
	if len(u) < 6 {
		return string(u)
	}
	return string(u)[:3] + "." + string(u)[len(u)-3:]
}
