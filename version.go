/*
Copyright © 2021 the InMAP authors.
This file is part of gridburn.

gridburn is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridburn is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridburn.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package gridburn burns a vector shape onto a regular grid: every cell
// whose footprint intersects the shape is set to a burn value, and the
// remaining cells are optionally set to zero. Rows are split into bands
// that are processed concurrently and reassembled in their original order.
package gridburn

// Version is the version of gridburn.
const Version = "0.1.0"
