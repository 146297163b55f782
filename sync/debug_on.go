// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build mtxdebug

package sync

const debugChecks = true
