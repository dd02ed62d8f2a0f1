// Copyright 2025 The jade Authors
// SPDX-License-Identifier: MIT

// Package useragent contains the User-Agent HTTP header constant for
// jade, sent by registry drivers such as internal/modrinth.
package useragent

// String is the user agent string used for making HTTP requests in jade.
const String = "jade"
