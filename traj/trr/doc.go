/*
 * doc.go, part of gotraj.
 *
 * Copyright 2020 Raul Mera <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package trr implements a random-access reader for GROMACS TRR binary
//trajectories. Unlike the sequential readers for other formats, a TRRObj
//indexes the whole file when it is opened, reading only the small header
//of each frame, and can then materialize the coordinates, velocities or
//forces of every frame in one call, reading from the file only the atoms
//an optional Selection asks for. Each block type is read at most once and
//cached.

/******************** Format notes   **********************************

A TRR file is a sequence of frames, all big-endian, with no file-level
header. Each frame starts with:

  bytes  0-3   magic number (1993)
  bytes  4-7   length of the format string
  bytes  8-23  padded format string
  bytes 24-75  13 int32: byte sizes of the input record, energy record,
               box, virial tensor, pressure tensor, topology and symmetry
               records, and of the coordinate (X), velocity (V) and
               force (F) blocks; then the number of atoms, the step
               number and NRE.
  then         time and lambda, as two 4-byte floats in single-precision
               files or two 8-byte floats in double-precision ones.

The precision is not stored; it is recovered from the size of the largest
of the X, V and F blocks, given the atom count and the 3 values per atom.
The header region, box included, takes 120 bytes in single precision and
164 in double. After it come the X, V and F blocks, each one 3 values per
atom sized by the precision, and each present only if its declared size
is not zero.

The reader assumes that every frame in a file shares the precision, atom
count and block layout of the first frame, which holds for files written
by the usual simulation packages. Files that break the assumption are
rejected when opened, instead of being read with wrong offsets.

***********************************************************************/

package trr
