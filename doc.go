// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

/*
Package togozip merges batches of files into an existing zip container
without ever leaving the container corrupted. New content is written to a
sibling temporary container and swapped into place with two renames.

Rewrite protocol (summary):
  - resolve collisions against the current destination entries;
  - write all existing entries (raw copy, original order) and then all new
    entries (submission order) into `<archive>.tmp`;
  - finalize and close the temporary container;
  - rename `<archive>` to `<archive>.bak`, then `<archive>.tmp` to `<archive>`;
  - remove the backup unless Options.KeepBackup asks to keep it.

A failure before the renames leaves the destination untouched. A failed swap
restores the backup.

# Merging

	job, err := togozip.NewJob("photos.zip", togozip.Options{})
	if err != nil {
	    return err
	}
	if err := job.Add("2024/", "IMG_0001.jpg", "IMG_0002.jpg"); err != nil {
	    return err
	}
	res, err := job.Run(ctx)
	if err != nil {
	    return err
	}
	if res.NoChange {
	    // every item was a duplicate
	}
	for _, c := range res.Collisions() {
	    fmt.Println(c.Item.EntryName, c.Kind, c.Name)
	}

# Collisions

When an item targets a name already present in the container:
  - with Options.DropOnCollision the item is dropped;
  - when the source modification time equals the entry time to the second,
    the item is a duplicate and dropped;
  - otherwise the item is renamed to "name(1).ext", "name(2).ext", ... until a
    free name is found, or dropped when a numbered entry with the same second
    already exists.

Resolve can be called directly for a dry run on an EntryIndex, and
Job.Resolve previews the outcome against the current destination.

# Compression

Existing entries are copied without recompression. New entries are deflated
with github.com/klauspost/compress/flate at Options.CompressionLevel unless a
github.com/woozymasta/pathrules Store rule matches. A zero level means the
default level; entries are written uncompressed only through Store rules:

	job, err := togozip.NewJob("photos.zip", togozip.Options{
	    Store: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "*.jpg"},
	        {Action: pathrules.ActionInclude, Pattern: "*.mp4"},
	    },
	    KeepBackup: 1,
	})

# Directories

AddDir walks a directory and schedules regular files selected by
Options.Select rules:

	n, err := job.AddDir("trip", "/sdcard/DCIM/trip")
	if err != nil {
	    return err
	}
	log.Printf("scheduled %d files", n)
*/
package togozip
